package bootsel

import "context"

// findHighestVersion implements the default policy behind
// find_slot_with_highest_version: among available slots, pick the
// highest version; ties go to the lowest slot index.
func findHighestVersion(state *BootLoaderState, image int) BootSlot {
	usage := &state.SlotUsage[image]
	candidate := BootSlotNone
	for slot := BootSlot(0); int(slot) < numSlots; slot++ {
		if !usage.SlotAvailable[slot] {
			continue
		}
		if candidate == BootSlotNone {
			candidate = slot
			continue
		}
		hdr := state.header(image, slot)
		candHdr := state.header(image, candidate)
		if CompareVersion(hdr.Version, candHdr.Version) > 0 {
			candidate = slot
		}
	}
	return candidate
}

// admitCandidate applies the mode-specific admissibility filters of
// step 6, in order. It returns (accept, err): err is non-nil only for
// an unrecoverable fault (e.g. a scramble that must abort the boot);
// accept=false with err=nil means "reject this slot, keep scanning".
func (s *BootLoaderState) admitCandidate(ctx context.Context, image int, slot BootSlot) (bool, error) {
	switch s.Config.Mode {
	case ModeDirectXIP:
		return s.admitDirectXIP(ctx, image, slot)
	case ModeRAMLoad:
		return s.admitRAMLoad(ctx, image, slot)
	default:
		return false, ErrNotImplemented
	}
}

func (s *BootLoaderState) admitDirectXIP(ctx context.Context, image int, slot BootSlot) (bool, error) {
	hdr := s.header(image, slot)
	area := s.Areas[image][slot]

	if hdr.RomFixed() && hdr.LoadAddr != area.Offset() {
		s.Log.Wrn("image built for a different slot offset, skipping", "image", image, "slot", slot)
		return false, nil
	}

	if s.Config.Revert {
		accept, err := s.selectOrErase(ctx, image, slot)
		if err != nil {
			return false, err
		}
		if !accept {
			return false, nil
		}
	}

	if err := s.Hooks.Validator.ValidateSlot(ctx, s, image, slot); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *BootLoaderState) admitRAMLoad(ctx context.Context, image int, slot BootSlot) (bool, error) {
	if s.Config.Revert {
		accept, err := s.selectOrErase(ctx, image, slot)
		if err != nil {
			return false, err
		}
		if !accept {
			return false, nil
		}
	}

	if err := s.Hooks.RAMStaging.Load(ctx, s, image, slot); err != nil {
		_ = s.Hooks.RAMStaging.RemoveFromFlash(ctx, s, image, slot)
		return false, nil
	}

	if err := s.Hooks.Validator.ValidateSlot(ctx, s, image, slot); err != nil {
		s.Hooks.RAMStaging.Remove(s, image)
		return false, nil
	}
	return true, nil
}

// selectImage runs the per-image retry loop grounded on
// boot_load_and_validate_images_xip/_ram's while(true) body. It
// returns FihSuccess once active_slot is committed, or FihFailure when
// no candidate remains.
func (s *BootLoaderState) selectImage(ctx context.Context, image int) FihRet {
	usage := &s.SlotUsage[image]

	for {
		if usage.ActiveSlot != BootSlotNone {
			return FihSuccess
		}

		var candidate BootSlot
		switch result, slot := s.Hooks.FindSlot.FindNextSlot(s, image); result {
		case FindSlotNone:
			s.Log.Inf("no slot to load for image", "image", image)
			return FihFailure
		case FindSlotResolved:
			candidate = slot
		default: // FindSlotRegular
			candidate = findHighestVersion(s, image)
		}

		if candidate == BootSlotNone {
			s.Log.Inf("no slot to load for image", "image", image)
			return FihFailure
		}

		usage.ActiveSlot = candidate

		accept, err := s.admitCandidate(ctx, image, candidate)
		if err != nil {
			return FihFailure
		}
		if !accept {
			usage.SlotAvailable[candidate] = false
			usage.ActiveSlot = BootSlotNone
			continue
		}

		return FihSuccess
	}
}

// selectAllImages runs selectImage for every non-masked image,
// implementing C4's outer per-image loop.
func (s *BootLoaderState) selectAllImages(ctx context.Context) FihRet {
	for image := 0; image < s.Config.NumImages; image++ {
		if s.ImgMask[image] {
			continue
		}
		if r := s.selectImage(ctx, image); !r.IsSuccess() {
			return FihFailure
		}
	}
	return FihSuccess
}
