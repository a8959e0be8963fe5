package bootsel

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
)

// TLVDependency is mcuboot's IMAGE_TLV_DEPENDENCY tag.
const TLVDependency uint16 = 0x0040

// dependencyRecordSize is the fixed on-flash size of one dependency
// entry: image_id(1) + pad(3) + image_version(8), matching mcuboot's
// image_dependency struct in image.h.
const dependencyRecordSize = 12

type dependencyRecord struct {
	ImageID uint8
	_       [3]byte
	Version ImageVersion
}

func parseDependencyRecord(raw []byte) (dependencyRecord, error) {
	var rec dependencyRecord
	if len(raw) != dependencyRecordSize {
		return rec, ErrBadDependency
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &rec); err != nil {
		return rec, ErrBadDependency
	}
	return rec, nil
}

// resolveDependencies implements C7: it walks every non-masked
// image's dependency TLVs against the currently-committed slots. It
// returns retry=true when it invalidated some image's candidate slot
// (the orchestrator must re-run selection), retry=false when every
// dependency is satisfied. A genuine flash read fault (ErrHeaderIO)
// aborts the boot outright; a malformed TLV container, a truncated
// entry, or a bad image_id all reject just that slot instead
// (retry=true, err=nil) and let the mode loader try another one,
// mirroring boot_verify_slot_dependencies_xip_ram's uniform
// mark-unavailable-and-continue handling of every non-fatal TLV fault.
func (s *BootLoaderState) resolveDependencies(ctx context.Context) (retry bool, err error) {
	for image := 0; image < s.Config.NumImages; image++ {
		if s.ImgMask[image] {
			continue
		}

		slot := s.SlotUsage[image].ActiveSlot
		if slot == BootSlotNone {
			continue
		}

		hdr := s.header(image, slot)
		area := s.Areas[image][slot]

		iter, iterErr := s.Hooks.TLVReader.IterBegin(hdr, area, TLVDependency, true)
		if iterErr != nil {
			if errors.Is(iterErr, ErrBadDependency) {
				s.Log.Wrn("malformed TLV container, rejecting slot", "image", image, "slot", slot)
				s.SlotUsage[image].SlotAvailable[slot] = false
				s.SlotUsage[image].ActiveSlot = BootSlotNone
				return true, nil
			}
			return false, iterErr
		}

		unsatisfied := false
		for {
			off, length, ok, nextErr := iter.Next()
			if nextErr != nil {
				if errors.Is(nextErr, ErrBadDependency) {
					s.Log.Wrn("truncated dependency TLV entry, rejecting slot", "image", image, "slot", slot)
					unsatisfied = true
					break
				}
				return false, nextErr
			}
			if !ok {
				break
			}

			if length != dependencyRecordSize {
				s.Log.Wrn("malformed dependency TLV, rejecting slot", "image", image, "slot", slot)
				unsatisfied = true
				break
			}

			raw := make([]byte, length)
			if err := area.Read(ctx, off, raw); err != nil {
				return false, err
			}
			rec, parseErr := parseDependencyRecord(raw)
			if parseErr != nil || int(rec.ImageID) >= s.Config.NumImages || int(rec.ImageID) == image {
				s.Log.Wrn("bad dependency image_id, rejecting slot", "image", image, "slot", slot)
				unsatisfied = true
				break
			}

			depSlot := s.SlotUsage[rec.ImageID].ActiveSlot
			if depSlot == BootSlotNone {
				unsatisfied = true
				break
			}
			depHdr := s.header(int(rec.ImageID), depSlot)
			if CompareVersion(depHdr.Version, rec.Version) < 0 {
				unsatisfied = true
				break
			}
		}

		if unsatisfied {
			s.SlotUsage[image].SlotAvailable[slot] = false
			s.SlotUsage[image].ActiveSlot = BootSlotNone
			return true, nil
		}
	}

	return false, nil
}
