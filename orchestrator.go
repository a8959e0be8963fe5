package bootsel

import "context"

// BootGo is the entry point, grounded on loader_public.c's
// context_boot_go. Dispatch to one of the three mode implementations is
// a runtime branch on s.Config.Mode rather than a build-time macro,
// since Go has no preprocessor — but exactly one mode is ever exercised
// per build's Config, so the branch reads like the compile-time
// dispatch it replaces.
func (s *BootLoaderState) BootGo(ctx context.Context) (BootResponse, FihRet) {
	switch s.Config.Mode {
	case ModeSwap:
		return BootResponse{}, fihFromErr(ErrNotImplemented)
	default:
		return s.bootGoCommon(ctx)
	}
}

// bootGoCommon implements the shared DIRECT_XIP/RAM_LOAD orchestration,
// grounded on context_boot_go_direct_xip/context_boot_go_ram_load: open,
// scan, the select/dependency-retry loop, rollback update, shared-data
// publish, response fill, close. Every exit path closes the areas it
// opened, including failure paths.
func (s *BootLoaderState) bootGoCommon(ctx context.Context) (resp BootResponse, ret FihRet) {
	if err := s.openAllAreas(ctx); err != nil {
		s.closeAllAreas()
		return BootResponse{}, fihFromErr(err)
	}

	if err := s.headerScan(ctx); err != nil {
		s.closeAllAreas()
		return BootResponse{}, fihFromErr(err)
	}

	// The dependency loop strictly decreases total slot availability
	// on every retry, so it cannot retry more than 2*NumImages times
	// and never needs more than 2*NumImages+1 passes; this loop count
	// is a defensive cap on top of that proof, not a substitute for it.
	maxPasses := 2*s.Config.NumImages + 1
	for pass := 0; ; pass++ {
		if pass >= maxPasses {
			s.closeAllAreas()
			return BootResponse{}, fihFromErr(ErrDegenerateLoop)
		}

		if r := s.selectAllImages(ctx); !r.IsSuccess() {
			s.closeAllAreas()
			return BootResponse{}, FihFailure
		}

		if s.Config.NumImages <= 1 {
			break
		}

		retry, err := s.resolveDependencies(ctx)
		if err != nil {
			s.closeAllAreas()
			return BootResponse{}, fihFromErr(err)
		}
		if !retry {
			break
		}
	}

	if err := s.updateRollbackProtection(ctx); err != nil {
		s.closeAllAreas()
		return BootResponse{}, fihFromErr(err)
	}

	if err := s.sharedDataAddAll(ctx); err != nil {
		s.closeAllAreas()
		return BootResponse{}, fihFromErr(err)
	}

	resp, err := s.fillBootResponse(ctx)
	if err != nil {
		s.closeAllAreas()
		return BootResponse{}, fihFromErr(err)
	}

	s.closeAllAreas()
	return resp, FihSuccess
}

// headerScan implements C2: for every non-masked image, every slot,
// read and validate the header, recording availability and the cached
// *ImageHeader. A slot with an implausible header is simply marked
// unavailable, not a boot failure; an I/O error reading the slot is.
func (s *BootLoaderState) headerScan(ctx context.Context) error {
	for image := 0; image < s.Config.NumImages; image++ {
		if s.ImgMask[image] {
			continue
		}
		for slot := BootSlot(0); int(slot) < numSlots; slot++ {
			area := s.Areas[image][slot]
			hdr, plausible, err := scanSlot(area)
			if err != nil {
				return ErrHeaderIO
			}
			s.SlotUsage[image].SlotAvailable[slot] = plausible
			if plausible {
				s.Headers[image][slot] = hdr
			}
		}
	}
	return nil
}
