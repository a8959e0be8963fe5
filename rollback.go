package bootsel

import "context"

// updateRollbackProtection implements C8: once every non-masked image
// has a committed, validated slot, advance each image's security
// counter to the committed header's Version.Build when that is higher
// than the stored value. In DIRECT_XIP revert
// mode the counter is only advanced once the slot's image_ok flag
// confirms the image has actually run before, matching
// boot_update_hw_rollback_protection_xip_ram's gating.
func (s *BootLoaderState) updateRollbackProtection(ctx context.Context) error {
	if !s.Config.HWRollbackProt {
		return nil
	}

	for image := 0; image < s.Config.NumImages; image++ {
		if s.ImgMask[image] {
			continue
		}

		slot := s.SlotUsage[image].ActiveSlot
		if slot == BootSlotNone {
			continue
		}

		if s.Config.Mode == ModeDirectXIP && s.Config.Revert {
			if s.SlotUsage[image].SwapState.ImageOk != flagStateSet {
				continue
			}
		}

		hdr := s.header(image, slot)
		counter, err := s.Hooks.SecurityCounter.Read(image, slot)
		if err != nil {
			return ErrRollbackUpdate
		}
		candidate := hdr.Version.Build
		if candidate <= counter {
			continue
		}
		if err := s.Hooks.SecurityCounter.Write(image, slot, candidate); err != nil {
			return ErrRollbackUpdate
		}
	}

	if s.Config.HWRollbackProtLock {
		for image := 0; image < s.Config.NumImages; image++ {
			if s.ImgMask[image] {
				continue
			}
			if err := s.Hooks.SecurityCounter.Lock(image); err != nil {
				return ErrRollbackUpdate
			}
		}
	}

	return nil
}
