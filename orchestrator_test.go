package bootsel

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
)

// alwaysOKValidator accepts every slot; individual tests override it
// when they need a slot to fail validation.
type alwaysOKValidator struct{}

func (alwaysOKValidator) ValidateSlot(context.Context, *BootLoaderState, int, BootSlot) error {
	return nil
}

// memCounters is an in-memory SecurityCounterService for tests.
type memCounters struct {
	values map[int]uint32
	locked map[int]bool
}

func newMemCounters() *memCounters {
	return &memCounters{values: map[int]uint32{}, locked: map[int]bool{}}
}

func (c *memCounters) Read(image int, slot BootSlot) (uint32, error) {
	return c.values[image], nil
}

func (c *memCounters) Write(image int, slot BootSlot, value uint32) error {
	c.values[image] = value
	return nil
}

func (c *memCounters) Lock(image int) error {
	c.locked[image] = true
	return nil
}

func slotArea(size uint32) *testArea {
	return &testArea{data: make([]byte, size)}
}

func putHeader(area *testArea, hdr ImageHeader) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		panic(err)
	}
	copy(area.data, buf.Bytes())
}

func newTestState(numImages int, mode Mode, revert bool) (*BootLoaderState, [][numSlots]*testArea) {
	areas := make([][numSlots]*testArea, numImages)
	factories := make([][numSlots]AreaFactory, numImages)
	for i := range areas {
		for s := 0; s < numSlots; s++ {
			areas[i][s] = slotArea(512)
			a := areas[i][s]
			factories[i][s] = func(ctx context.Context) (FlashArea, error) { return a, nil }
		}
	}
	cfg := Config{Mode: mode, Revert: revert, NumImages: numImages, RAMStagingSize: 4096}
	hooks := Hooks{
		Validator:       alwaysOKValidator{},
		FindSlot:        NoFindSlotHook{},
		SecurityCounter: newMemCounters(),
		RAMStaging:      &DefaultRAMStaging{},
		SharedData:      NopSharedDataSink{},
		TLVReader:       DefaultTLVReader{},
		Codec:           DefaultCodec{},
	}
	s := NewBootLoaderState(cfg, factories, hooks, nil)
	return s, areas
}

// Scenario 1: happy XIP, slot 0 valid, slot 1 invalid.
func TestEndToEndHappyXIP(t *testing.T) {
	s, areas := newTestState(1, ModeDirectXIP, false)
	putHeader(areas[0][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{1, 2, 0, 0}})
	// slot 1 left zeroed: bad magic, implausible.

	resp, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if resp.Slot != BootSlotPrimary {
		t.Errorf("expected slot 0 committed, got %v", resp.Slot)
	}
}

// Scenario 2: revert after failed confirm.
func TestEndToEndRevertAfterFailedConfirm(t *testing.T) {
	s, areas := newTestState(1, ModeDirectXIP, true)
	putHeader(areas[0][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{2, 0, 0, 0}})
	writeTestTrailer(areas[0][0], true, flagStateSet, flagStateUnset)

	putHeader(areas[0][1], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{1, 5, 0, 0}})
	// A pending candidate needs a trailer with the good magic written
	// (copy_done/image_ok unset) before select_or_erase will admit it;
	// an erased trailer is treated the same as a corrupted one.
	writeTestTrailer(areas[0][1], true, flagStateUnset, flagStateUnset)

	resp, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if resp.Slot != BootSlotSecondary {
		t.Errorf("expected slot 1 committed, got %v", resp.Slot)
	}
	for i, b := range areas[0][0].data {
		if b != 0xff {
			t.Fatalf("expected slot 0 fully scrambled, byte %d = %#x", i, b)
		}
	}
}

// Scenario 3: first selection writes copy_done.
func TestEndToEndFirstSelectionWritesCopyDone(t *testing.T) {
	s, areas := newTestState(1, ModeDirectXIP, true)
	putHeader(areas[0][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{2, 0, 0, 0}})
	writeTestTrailer(areas[0][0], true, flagStateUnset, flagStateUnset)
	// slot 1 left invalid.

	resp, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if resp.Slot != BootSlotPrimary {
		t.Errorf("expected slot 0 committed, got %v", resp.Slot)
	}
	off := len(areas[0][0].data) - trailerSize
	if areas[0][0].data[off+trailerMagicSize] != flagSet {
		t.Errorf("expected copy_done written to slot 0 trailer")
	}
}

// Scenario 4: RAM load TOCTOU — flash mutated after load, validation
// must still see the RAM copy, not the mutated flash.
type toctouRAMStaging struct {
	inner   *DefaultRAMStaging
	mutate  func()
	mutated bool
}

func (t *toctouRAMStaging) Load(ctx context.Context, state *BootLoaderState, image int, slot BootSlot) error {
	if err := t.inner.Load(ctx, state, image, slot); err != nil {
		return err
	}
	t.mutate()
	t.mutated = true
	return nil
}
func (t *toctouRAMStaging) Remove(state *BootLoaderState, image int) { t.inner.Remove(state, image) }
func (t *toctouRAMStaging) RemoveFromFlash(ctx context.Context, state *BootLoaderState, image int, slot BootSlot) error {
	return t.inner.RemoveFromFlash(ctx, state, image, slot)
}

type recordingValidator struct {
	sawRAMImage []byte
}

func (v *recordingValidator) ValidateSlot(ctx context.Context, state *BootLoaderState, image int, slot BootSlot) error {
	v.sawRAMImage = append([]byte(nil), state.SlotUsage[image].RAMImage...)
	return nil
}

func TestEndToEndRAMLoadTOCTOU(t *testing.T) {
	s, areas := newTestState(1, ModeRAMLoad, false)
	hdr := ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, ImgSize: 16, Version: ImageVersion{1, 0, 0, 0}}
	putHeader(areas[0][0], hdr)
	for i := 0; i < 16; i++ {
		areas[0][0].data[ImageHeaderSize+i] = byte(0xAA)
	}

	recorder := &recordingValidator{}
	staging := &toctouRAMStaging{
		inner: &DefaultRAMStaging{},
		mutate: func() {
			for i := 0; i < 16; i++ {
				areas[0][0].data[ImageHeaderSize+i] = byte(0x00)
			}
		},
	}
	s.Hooks.Validator = recorder
	s.Hooks.RAMStaging = staging

	resp, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if resp.Slot != BootSlotPrimary {
		t.Errorf("expected slot 0 committed")
	}
	for i, b := range recorder.sawRAMImage {
		if b != 0xAA {
			t.Fatalf("validator saw post-mutation byte at %d: %#x", i, b)
		}
	}
}

// Scenario 5: two-image dependency retry converges to failure. Every
// image 0 slot requires image 1 at version >= 2; image 1's only
// higher-version slot in turn requires an image 0 version that does
// not exist, so every combination is eventually exhausted.
func TestEndToEndTwoImageDependencyRetryFails(t *testing.T) {
	s, areas := newTestState(2, ModeDirectXIP, false)

	const depsTLVSize = tlvInfoHeaderSize + tlvEntryHeaderSize + dependencyRecordSize

	putHeader(areas[0][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, ProtectTLVSize: depsTLVSize, Version: ImageVersion{0, 0, 0, 2}})
	appendDependencyTLV(areas[0][0], ImageHeaderSize, 1, ImageVersion{0, 0, 0, 2})
	putHeader(areas[0][1], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, ProtectTLVSize: depsTLVSize, Version: ImageVersion{0, 0, 0, 1}})
	appendDependencyTLV(areas[0][1], ImageHeaderSize, 1, ImageVersion{0, 0, 0, 2})

	putHeader(areas[1][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{0, 0, 0, 1}})
	putHeader(areas[1][1], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, ProtectTLVSize: depsTLVSize, Version: ImageVersion{0, 0, 0, 2}})
	appendDependencyTLV(areas[1][1], ImageHeaderSize, 0, ImageVersion{0, 0, 0, 3})

	_, ret := s.BootGo(context.Background())
	if ret.IsSuccess() {
		t.Fatalf("expected failure: no slot combination satisfies both dependency constraints")
	}
}

// Scenario 6: ROM_FIXED mismatch rejects slot 0, commits slot 1.
func TestEndToEndRomFixedMismatch(t *testing.T) {
	s, areas := newTestState(1, ModeDirectXIP, false)
	areas[0][0].off = 0x10000
	areas[0][1].off = 0x20000

	putHeader(areas[0][0], ImageHeader{
		Magic: ImageMagic, HdrSize: ImageHeaderSize,
		Flags: ImageHeaderFlagRomFixed, LoadAddr: 0x20000,
		Version: ImageVersion{1, 0, 0, 0},
	})
	putHeader(areas[0][1], ImageHeader{
		Magic: ImageMagic, HdrSize: ImageHeaderSize,
		Flags: ImageHeaderFlagRomFixed, LoadAddr: 0x20000,
		Version: ImageVersion{1, 0, 0, 0},
	})

	resp, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if resp.Slot != BootSlotSecondary {
		t.Errorf("expected slot 1 committed, got %v", resp.Slot)
	}
}

func TestEndToEndBothSlotsInvalidFails(t *testing.T) {
	s, _ := newTestState(1, ModeDirectXIP, false)
	_, ret := s.BootGo(context.Background())
	if ret.IsSuccess() {
		t.Fatalf("expected failure when both slots are invalid")
	}
}

// writeTestTrailer is the in-package counterpart of the CLI harness's
// writeTrailer, used directly against a testArea's backing buffer.
func writeTestTrailer(area *testArea, magicGood bool, copyDone, imageOk flagState) {
	off := len(area.data) - trailerSize
	for i := 0; i < trailerSize; i++ {
		area.data[off+i] = flagUnset
	}
	if magicGood {
		raw := [16]byte{}
		putMagic(raw[:])
		copy(area.data[off:], raw[:])
	}
	if copyDone == flagStateSet {
		area.data[off+trailerMagicSize] = flagSet
	}
	if imageOk == flagStateSet {
		area.data[off+trailerMagicSize+1] = flagSet
	}
}

func putMagic(dst []byte) {
	for i, w := range bootMagicGood {
		dst[4*i] = byte(w)
		dst[4*i+1] = byte(w >> 8)
		dst[4*i+2] = byte(w >> 16)
		dst[4*i+3] = byte(w >> 24)
	}
}

func appendDependencyTLV(area *testArea, bodyEnd int, depImage uint8, min ImageVersion) {
	// Protected TLV area: info header (magic, total_len) then one
	// tag/len/value entry holding the dependency record. Dependency TLVs
	// live in the protected area so an attacker cannot rewrite a
	// requirement without invalidating the signature.
	entry := make([]byte, dependencyRecordSize)
	entry[0] = depImage
	entry[4] = min.Major
	entry[5] = min.Minor
	entry[6] = byte(min.Revision)
	entry[7] = byte(min.Revision >> 8)
	entry[8] = byte(min.Build)
	entry[9] = byte(min.Build >> 8)
	entry[10] = byte(min.Build >> 16)
	entry[11] = byte(min.Build >> 24)

	total := tlvInfoHeaderSize + tlvEntryHeaderSize + dependencyRecordSize
	buf := make([]byte, total)
	buf[0] = byte(tlvInfoMagicProtected)
	buf[1] = byte(tlvInfoMagicProtected >> 8)
	buf[2] = byte(total)
	buf[3] = byte(total >> 8)
	buf[4] = byte(TLVDependency)
	buf[5] = byte(TLVDependency >> 8)
	buf[6] = byte(dependencyRecordSize)
	buf[7] = byte(dependencyRecordSize >> 8)
	copy(buf[8:], entry)

	copy(area.data[bodyEnd:], buf)
}
