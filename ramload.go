package bootsel

import (
	"context"

	"bootsel/codec"
)

// PayloadCodec abstracts image-payload decompression behind the same
// Hooks indirection as every other external collaborator, so the core
// itself never imports a concrete compression library directly.
type PayloadCodec interface {
	Decompress(raw []byte, maxOut uint32) ([]byte, error)
}

// DefaultCodec dispatches to the codec package's magic-based format
// detection; a plain (uncompressed) payload passes through unchanged.
type DefaultCodec struct{}

func (DefaultCodec) Decompress(raw []byte, maxOut uint32) ([]byte, error) {
	return codec.Decompress(raw, maxOut)
}

// DefaultRAMStaging implements RAMStaging (C6) by reading the whole
// image out of flash and, if it is compressed, decompressing it into
// a fixed-size RAM staging buffer. TOCTOU protection: the bytes
// validated by ValidateSlot are the same RAMImage slice copied here,
// never re-read from flash afterward.
type DefaultRAMStaging struct {
	Codec PayloadCodec
}

func (d *DefaultRAMStaging) codec(state *BootLoaderState) PayloadCodec {
	if d.Codec != nil {
		return d.Codec
	}
	if state.Hooks.Codec != nil {
		return state.Hooks.Codec
	}
	return DefaultCodec{}
}

func (d *DefaultRAMStaging) Load(ctx context.Context, state *BootLoaderState, image int, slot BootSlot) error {
	area := state.Areas[image][slot]
	hdr := state.header(image, slot)
	if hdr == nil {
		return ErrHeaderIO
	}

	total := uint32(hdr.HdrSize) + hdr.ImgSize
	if total > area.Size() {
		return ErrHeaderIO
	}

	raw := make([]byte, total)
	if err := area.Read(ctx, 0, raw); err != nil {
		return ErrHeaderIO
	}
	body := raw[hdr.HdrSize:]

	out, err := d.codec(state).Decompress(body, state.Config.RAMStagingSize)
	if err != nil {
		state.Log.Wrn("ram load failed", "image", image, "slot", slot, "err", err)
		return err
	}

	state.SlotUsage[image].RAMImage = out
	return nil
}

func (d *DefaultRAMStaging) Remove(state *BootLoaderState, image int) {
	clear(state.SlotUsage[image].RAMImage)
	state.SlotUsage[image].RAMImage = nil
}

func (d *DefaultRAMStaging) RemoveFromFlash(ctx context.Context, state *BootLoaderState, image int, slot BootSlot) error {
	area := state.Areas[image][slot]
	return area.Scramble(ctx, 0, area.Size(), false)
}
