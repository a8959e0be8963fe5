package bootsel

import "context"

// BootResponse is what the core hands off to the final architecture-
// specific jump, which lives outside this package: which flash area
// and header to execute (or RAM image, in RAM_LOAD mode).
type BootResponse struct {
	Image    int
	Slot     BootSlot
	Header   *ImageHeader
	Area     FlashArea
	RAMImage []byte // non-nil in RAM_LOAD
}

// fillBootResponse implements C9, grounded on fill_rsp_xip_ram: the
// first non-masked image with a committed slot determines the
// response. The original walks BOOT_CURR_IMG, a hidden mutable cursor
// on state; this walks an explicit index instead. If no image
// qualifies, it returns the zero BootResponse unchanged.
func (s *BootLoaderState) fillBootResponse(ctx context.Context) (BootResponse, error) {
	for image := 0; image < s.Config.NumImages; image++ {
		if s.ImgMask[image] {
			continue
		}
		slot := s.SlotUsage[image].ActiveSlot
		if slot == BootSlotNone {
			continue
		}
		resp := BootResponse{
			Image:  image,
			Slot:   slot,
			Header: s.header(image, slot),
			Area:   s.Areas[image][slot],
		}
		if s.Config.Mode == ModeRAMLoad {
			resp.RAMImage = s.SlotUsage[image].RAMImage
		}
		return resp, nil
	}
	return BootResponse{}, nil
}

// sharedDataAddAll implements the orchestrator's shared_data_add_all
// step: every non-masked image with a committed slot publishes its
// metadata before the response is filled.
func (s *BootLoaderState) sharedDataAddAll(ctx context.Context) error {
	for image := 0; image < s.Config.NumImages; image++ {
		if s.ImgMask[image] {
			continue
		}
		slot := s.SlotUsage[image].ActiveSlot
		if slot == BootSlotNone {
			continue
		}
		if err := s.Hooks.SharedData.AddSharedData(s, image, slot); err != nil {
			return ErrSharedData
		}
	}
	return nil
}
