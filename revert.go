package bootsel

import "context"

// selectOrErase implements the revert/erase gate (C5): a candidate
// slot is only admissible if its trailer magic is good and it is not
// stuck mid-swap (copy_done set but image_ok not yet confirmed). A
// rejected slot is scrambled so it cannot be picked again.
//
// It returns (accept, err), where err is reserved for a scramble
// failure — that is the one fault this gate treats as unrecoverable,
// since a half-erased trailer can no longer be trusted either way.
func (s *BootLoaderState) selectOrErase(ctx context.Context, image int, slot BootSlot) (bool, error) {
	area := s.Areas[image][slot]

	swapState, err := readSwapState(ctx, area)
	if err != nil {
		// Trailer is unreadable; skip the revert checks entirely and
		// let the slot stand on its header/signature alone.
		s.SlotUsage[image].SwapState = BootSwapState{}
		return true, nil
	}
	s.SlotUsage[image].SwapState = swapState

	stuckMidSwap := swapState.CopyDone == flagStateSet && swapState.ImageOk != flagStateSet
	if swapState.Magic != magicStateGood || stuckMidSwap {
		s.Log.Wrn("erasing unconfirmed image", "image", image, "slot", slot)
		if err := area.Scramble(ctx, 0, area.Size(), false); err != nil {
			return false, ErrScrambleFailed
		}
		return false, nil
	}

	if swapState.CopyDone != flagStateSet {
		if err := writeCopyDone(ctx, area); err != nil {
			// Like boot_select_or_erase, log a warning and carry on
			// with the slot accepted rather than escalate into a boot
			// failure.
			s.Log.Wrn("failed to write copy_done", "image", image, "slot", slot, "err", err)
		}
	}

	return true, nil
}
