package bootsel

import "context"

// Swap-state byte values, matching mcuboot's BOOT_FLAG_SET/BOOT_FLAG_UNSET:
// set = 0x01, unset = 0xff (erased), bad = anything else.
const (
	flagSet   byte = 0x01
	flagUnset byte = 0xff
)

// bootMagicGood is mcuboot's 16-byte trailer magic, stored as four
// little-endian uint32 words on flash.
var bootMagicGood = [4]uint32{0xf395c277, 0x7fefd260, 0x0f505235, 0x8079b62c}

const trailerMagicSize = 16  // 4 * uint32
const trailerRecordSize = 3  // copy_done, image_ok, swap_type, one byte each
const trailerSize = trailerMagicSize + trailerRecordSize

// flagState is the tri-state {set, unset, bad} a single trailer byte
// can carry.
type flagState int

const (
	flagStateUnset flagState = iota
	flagStateSet
	flagStateBad
)

func classifyFlag(b byte) flagState {
	switch b {
	case flagSet:
		return flagStateSet
	case flagUnset:
		return flagStateUnset
	default:
		return flagStateBad
	}
}

// magicState is the tri-state {good, bad, unset} of the trailer magic.
type magicState int

const (
	magicStateUnset magicState = iota
	magicStateBad
	magicStateGood
)

// BootSwapState is the trailer at a slot's end, mirroring struct
// boot_swap_state. SwapType is retained but never interpreted: the
// swap-resize algorithm that would read it is out of scope here.
type BootSwapState struct {
	Magic     magicState
	CopyDone  flagState
	ImageOk   flagState
	SwapType  byte
}

func decodeMagic(raw [trailerMagicSize]byte) magicState {
	var words [4]uint32
	for i := 0; i < 4; i++ {
		words[i] = uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
	}
	if words == bootMagicGood {
		return magicStateGood
	}
	allUnset := true
	for _, b := range raw {
		if b != flagUnset {
			allUnset = false
			break
		}
	}
	if allUnset {
		return magicStateUnset
	}
	return magicStateBad
}

// readSwapState reads the trailer of a slot into a BootSwapState. It
// is only ever called when the mode's revert feature is enabled (C5).
func readSwapState(ctx context.Context, area FlashArea) (BootSwapState, error) {
	off := area.Size() - trailerSize
	raw := make([]byte, trailerSize)
	if err := area.Read(ctx, off, raw); err != nil {
		return BootSwapState{}, ErrHeaderIO
	}

	var magicRaw [trailerMagicSize]byte
	copy(magicRaw[:], raw[:trailerMagicSize])

	return BootSwapState{
		Magic:    decodeMagic(magicRaw),
		CopyDone: classifyFlag(raw[trailerMagicSize]),
		ImageOk:  classifyFlag(raw[trailerMagicSize+1]),
		SwapType: raw[trailerMagicSize+2],
	}, nil
}

// writeCopyDone writes the copy_done=set byte to a slot's trailer.
func writeCopyDone(ctx context.Context, area FlashArea) error {
	off := area.Size() - trailerSize + trailerMagicSize
	return area.Write(ctx, off, []byte{flagSet})
}
