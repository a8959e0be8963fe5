package bootsel

import "context"

// FlashArea is the external flash-primitive collaborator, grounded on
// the flash_area_* calls threaded through loader_xip_ram_common.c:
// open/close are handled by whoever constructs a FlashArea (the
// flashsim package provides two implementations); this interface covers
// the operations the core invokes once an area handle exists.
type FlashArea interface {
	DeviceID() uint8
	Offset() uint32
	Size() uint32
	Read(ctx context.Context, off uint32, buf []byte) error
	Write(ctx context.Context, off uint32, buf []byte) error
	Scramble(ctx context.Context, off, size uint32, preserve bool) error
	Close() error
}

// openAllAreas opens every flash area declared for every non-masked
// image (C1). Areas for masked images need not be opened. Failure to
// open any required area aborts the boot.
func (s *BootLoaderState) openAllAreas(ctx context.Context) error {
	for img := range s.areaFactories {
		if s.ImgMask[img] {
			continue
		}
		for slot := 0; slot < numSlots; slot++ {
			area, err := s.areaFactories[img][slot](ctx)
			if err != nil {
				return ErrOpenArea
			}
			s.Areas[img][slot] = area
		}
	}
	return nil
}

// closeAllAreas releases every opened area. Closing is idempotent and
// best-effort: a close failure never overrides an already-successful
// boot result.
func (s *BootLoaderState) closeAllAreas() {
	for img := range s.Areas {
		for slot := 0; slot < numSlots; slot++ {
			if a := s.Areas[img][slot]; a != nil {
				_ = a.Close()
				s.Areas[img][slot] = nil
			}
		}
	}
}
