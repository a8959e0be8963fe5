package bootsel

import (
	"context"
	"encoding/binary"
)

// TLV area layout, reused from mcuboot's wire format: a 4-byte info
// header (magic uint16, total-length uint16 including the info
// header itself) followed by tag(uint16)/length(uint16)/value
// entries. The protected TLV area (if any) uses a distinct magic and
// sits immediately after the image body; the regular TLV area follows
// it and runs to the end of the slot (or to the trailer, in
// revert-enabled modes).
const (
	tlvInfoMagicProtected uint16 = 0x6908
	tlvInfoMagic          uint16 = 0x6907
	tlvInfoHeaderSize             = 4
	tlvEntryHeaderSize            = 4
)

// DefaultTLVReader implements TLVReader by reading the whole
// requested TLV area into memory once and scanning it linearly,
// grounded on bootutil_tlv_iter_begin/_next's two-pass magic-then-scan
// shape. It is the one concrete TLV implementation this core ships,
// even though TLVReader is itself an external-collaborator seam: the
// dependency resolver needs a real walk to exercise against.
type DefaultTLVReader struct{}

// IterBegin returns ErrHeaderIO only for an actual flash read fault;
// a bad magic, an impossible total length, or (from the returned
// iterator's Next) a truncated entry all come back as ErrBadDependency,
// since those describe a malformed container rather than a device
// fault, and the dependency resolver rejects just that slot for them.
func (DefaultTLVReader) IterBegin(hdr *ImageHeader, area FlashArea, tag uint16, protectedOnly bool) (TLVIterator, error) {
	var start uint32
	var wantMagic uint16
	if protectedOnly {
		start = uint32(hdr.HdrSize) + hdr.ImgSize
		wantMagic = tlvInfoMagicProtected
		if hdr.ProtectTLVSize == 0 {
			return &memTLVIterator{}, nil
		}
	} else {
		start = uint32(hdr.HdrSize) + hdr.ImgSize + uint32(hdr.ProtectTLVSize)
		wantMagic = tlvInfoMagic
	}

	info := make([]byte, tlvInfoHeaderSize)
	if err := area.Read(context.Background(), start, info); err != nil {
		return nil, ErrHeaderIO
	}
	magic := binary.LittleEndian.Uint16(info[0:2])
	total := binary.LittleEndian.Uint16(info[2:4])
	if magic != wantMagic {
		// A bad magic is a malformed container, not a flash fault: the
		// caller rejects this slot and retries rather than aborting.
		return nil, ErrBadDependency
	}
	if total < tlvInfoHeaderSize || start+uint32(total) > area.Size() {
		return nil, ErrBadDependency
	}

	body := make([]byte, total-tlvInfoHeaderSize)
	if len(body) > 0 {
		if err := area.Read(context.Background(), start+tlvInfoHeaderSize, body); err != nil {
			return nil, ErrHeaderIO
		}
	}

	return &memTLVIterator{
		base: start + tlvInfoHeaderSize,
		body: body,
		tag:  tag,
	}, nil
}

// memTLVIterator walks a TLV area already buffered in memory.
type memTLVIterator struct {
	base uint32
	body []byte
	tag  uint16
	pos  int
}

func (it *memTLVIterator) Next() (off uint32, length uint16, ok bool, err error) {
	for it.pos+tlvEntryHeaderSize <= len(it.body) {
		entryOff := it.pos
		tag := binary.LittleEndian.Uint16(it.body[entryOff : entryOff+2])
		length := binary.LittleEndian.Uint16(it.body[entryOff+2 : entryOff+4])
		valueOff := entryOff + tlvEntryHeaderSize
		if valueOff+int(length) > len(it.body) {
			return 0, 0, false, ErrBadDependency
		}
		it.pos = valueOff + int(length)
		if tag == it.tag {
			return it.base + uint32(valueOff), length, true, nil
		}
	}
	return 0, 0, false, nil
}
