package bootsel

import (
	"bytes"
	"context"
	"encoding/binary"
)

// ImageMagic is the fixed magic value at the start of every image
// header, the same constant mcuboot's image.h defines.
const ImageMagic uint32 = 0x96f3b83d

// ImageHeaderFlagRomFixed is bit 0 of ImageHeader.Flags: the image must
// run from the specific flash offset recorded in LoadAddr.
const ImageHeaderFlagRomFixed uint32 = 0x00000001

// ImageHeaderSize is the on-flash size of ImageHeader, in bytes.
const ImageHeaderSize = 32

// ImageHeader is the fixed-layout structure at offset 0 of every slot.
// Magic, Flags, LoadAddr and Version drive slot selection; HdrSize,
// ImgSize and ProtectTLVSize are used only for the plausibility check
// and to locate the payload and TLV areas.
type ImageHeader struct {
	Magic          uint32
	LoadAddr       uint32
	HdrSize        uint16
	ProtectTLVSize uint16
	ImgSize        uint32
	Flags          uint32
	Version        ImageVersion
	Pad1           uint32
}

// RomFixed reports whether the image declares a fixed ROM address.
func (h *ImageHeader) RomFixed() bool {
	return h.Flags&ImageHeaderFlagRomFixed != 0
}

// parseImageHeader decodes a raw header buffer. It never returns an
// error for structurally implausible content — only for a buffer too
// short to contain a header at all, which the caller treats as an I/O
// fault rather than an invalid header.
func parseImageHeader(raw []byte) (*ImageHeader, error) {
	if len(raw) < ImageHeaderSize {
		return nil, ErrHeaderIO
	}
	hdr := &ImageHeader{}
	if err := binary.Read(bytes.NewReader(raw[:ImageHeaderSize]), binary.LittleEndian, hdr); err != nil {
		return nil, ErrHeaderIO
	}
	return hdr, nil
}

// headerPlausible applies the "structurally plausible" check from C2:
// magic must match, and the size fields must be self-consistent (the
// header claims to fit the declared image and protected-TLV sizes
// within the slot). An invalid header is not an error — it only clears
// slot availability.
func headerPlausible(hdr *ImageHeader, slotSize uint32) bool {
	if hdr.Magic != ImageMagic {
		return false
	}
	if hdr.HdrSize < ImageHeaderSize {
		return false
	}
	total := uint64(hdr.HdrSize) + uint64(hdr.ImgSize) + uint64(hdr.ProtectTLVSize)
	if total > uint64(slotSize) {
		return false
	}
	return true
}

// scanSlot reads and sanity-checks the header in one slot of one image,
// implementing the per-slot half of C2 (boot_get_slot_usage /
// boot_check_header_valid). It returns (header, available, err); err is
// non-nil only on an I/O fault, never on an implausible header.
func scanSlot(area FlashArea) (*ImageHeader, bool, error) {
	raw := make([]byte, ImageHeaderSize)
	if err := area.Read(context.Background(), 0, raw); err != nil {
		return nil, false, ErrHeaderIO
	}
	hdr, err := parseImageHeader(raw)
	if err != nil {
		return nil, false, err
	}
	if !headerPlausible(hdr, area.Size()) {
		return hdr, false, nil
	}
	return hdr, true, nil
}
