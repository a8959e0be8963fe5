package bootsel

import (
	"context"
	"testing"
)

// newRollbackTestState is newTestState's counterpart with the hardware
// rollback-protection knobs exposed, since newTestState hardcodes them off.
func newRollbackTestState(numImages int, mode Mode, revert, hwProt, hwLock bool) (*BootLoaderState, [][numSlots]*testArea, *memCounters) {
	areas := make([][numSlots]*testArea, numImages)
	factories := make([][numSlots]AreaFactory, numImages)
	for i := range areas {
		for s := 0; s < numSlots; s++ {
			areas[i][s] = slotArea(512)
			a := areas[i][s]
			factories[i][s] = func(ctx context.Context) (FlashArea, error) { return a, nil }
		}
	}
	cfg := Config{
		Mode:               mode,
		Revert:             revert,
		HWRollbackProt:     hwProt,
		HWRollbackProtLock: hwLock,
		NumImages:          numImages,
		RAMStagingSize:     4096,
	}
	counters := newMemCounters()
	hooks := Hooks{
		Validator:       alwaysOKValidator{},
		FindSlot:        NoFindSlotHook{},
		SecurityCounter: counters,
		RAMStaging:      &DefaultRAMStaging{},
		SharedData:      NopSharedDataSink{},
		TLVReader:       DefaultTLVReader{},
		Codec:           DefaultCodec{},
	}
	s := NewBootLoaderState(cfg, factories, hooks, nil)
	return s, areas, counters
}

// With HWRollbackProt on and no revert gating in play (plain XIP, no
// revert), the committed slot's version advances the security counter.
func TestUpdateRollbackProtectionAdvancesCounter(t *testing.T) {
	s, areas, counters := newRollbackTestState(1, ModeDirectXIP, false, true, false)
	putHeader(areas[0][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{1, 0, 0, 7}})

	resp, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if resp.Slot != BootSlotPrimary {
		t.Fatalf("expected slot 0 committed, got %v", resp.Slot)
	}
	if got := counters.values[0]; got != 7 {
		t.Errorf("expected security counter advanced to 7, got %d", got)
	}
	if counters.locked[0] {
		t.Errorf("expected counter left unlocked when HWRollbackProtLock is false")
	}
}

// HWRollbackProtLock locks every non-masked image's counter after the
// advance.
func TestUpdateRollbackProtectionLocksCounter(t *testing.T) {
	s, areas, counters := newRollbackTestState(1, ModeDirectXIP, false, true, true)
	putHeader(areas[0][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{1, 0, 0, 3}})

	_, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if !counters.locked[0] {
		t.Errorf("expected security counter locked")
	}
}

// In DIRECT_XIP revert mode, the counter must NOT advance for a slot
// that has never been confirmed (image_ok unset): the image hasn't
// proven it runs, so it cannot be trusted to gate future rollback.
func TestUpdateRollbackProtectionGatedOnImageOkUnderRevert(t *testing.T) {
	s, areas, counters := newRollbackTestState(1, ModeDirectXIP, true, true, false)
	putHeader(areas[0][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{1, 0, 0, 9}})
	writeTestTrailer(areas[0][0], true, flagStateUnset, flagStateUnset)

	resp, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if resp.Slot != BootSlotPrimary {
		t.Fatalf("expected slot 0 committed, got %v", resp.Slot)
	}
	if got := counters.values[0]; got != 0 {
		t.Errorf("expected security counter untouched while unconfirmed, got %d", got)
	}
}

// Once the same slot is confirmed (image_ok set), the gate opens and
// the counter advances to the confirmed slot's version.
func TestUpdateRollbackProtectionAdvancesOnceConfirmedUnderRevert(t *testing.T) {
	s, areas, counters := newRollbackTestState(1, ModeDirectXIP, true, true, false)
	putHeader(areas[0][0], ImageHeader{Magic: ImageMagic, HdrSize: ImageHeaderSize, Version: ImageVersion{1, 0, 0, 9}})
	writeTestTrailer(areas[0][0], true, flagStateSet, flagStateSet)

	resp, ret := s.BootGo(context.Background())
	if !ret.IsSuccess() {
		t.Fatalf("expected success")
	}
	if resp.Slot != BootSlotPrimary {
		t.Fatalf("expected slot 0 committed, got %v", resp.Slot)
	}
	if got := counters.values[0]; got != 9 {
		t.Errorf("expected security counter advanced to 9 once confirmed, got %d", got)
	}
}
