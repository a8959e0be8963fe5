package bootsel

import "context"

// Validator is the external signature/hash collaborator, grounded on
// boot_validate_slot's call signature in loader_xip_ram_common.c. Image
// parsing and crypto verification themselves live outside this core;
// it only calls through this seam.
type Validator interface {
	ValidateSlot(ctx context.Context, state *BootLoaderState, image int, slot BootSlot) error
}

// FindSlotResult is the three-way outcome of the find-next-slot hook.
type FindSlotResult int

const (
	// FindSlotRegular means "fall through to the default highest-version policy".
	FindSlotRegular FindSlotResult = iota
	// FindSlotResolved means the hook picked a slot itself.
	FindSlotResolved
	// FindSlotNone means the hook reports no candidate for this image.
	FindSlotNone
)

// FindSlotHook is the pluggable slot-selection override, grounded on
// BOOT_HOOK_FIND_SLOT_CALL/boot_find_next_slot_hook.
type FindSlotHook interface {
	FindNextSlot(state *BootLoaderState, image int) (FindSlotResult, BootSlot)
}

// NoFindSlotHook always defers to the default highest-version policy.
type NoFindSlotHook struct{}

func (NoFindSlotHook) FindNextSlot(*BootLoaderState, int) (FindSlotResult, BootSlot) {
	return FindSlotRegular, BootSlotNone
}

// SecurityCounterService is the anti-rollback collaborator (C8): a
// monotonic, per-image counter stored in a trusted non-volatile
// location, with an optional one-way lock, grounded on
// boot_update_hw_rollback_protection_xip_ram's counter read/write/lock
// calls.
type SecurityCounterService interface {
	Read(image int, slot BootSlot) (uint32, error)
	Write(image int, slot BootSlot, value uint32) error
	Lock(image int) error
}

// RAMStaging is the RAM-loading collaborator (C6), grounded on
// boot_load_image_to_sram/boot_remove_image_from_sram/
// boot_remove_image_from_flash in loader_ram_load.c.
type RAMStaging interface {
	// Load copies (decompressing if the payload is compressed) the
	// image at (image, slot) into state.SlotUsage[image].RAMImage.
	Load(ctx context.Context, state *BootLoaderState, image int, slot BootSlot) error
	// Remove zeroes the RAM copy for image.
	Remove(state *BootLoaderState, image int)
	// RemoveFromFlash optionally scrubs the flash-resident copy after a
	// failed RAM load.
	RemoveFromFlash(ctx context.Context, state *BootLoaderState, image int, slot BootSlot) error
}

// SharedDataSink publishes the selected image's metadata to later boot
// stages (add_shared_data).
type SharedDataSink interface {
	AddSharedData(state *BootLoaderState, image int, slot BootSlot) error
}

// NopSharedDataSink does nothing; useful when a caller has no later
// boot stage to notify.
type NopSharedDataSink struct{}

func (NopSharedDataSink) AddSharedData(*BootLoaderState, int, BootSlot) error { return nil }

// TLVIterator walks TLV records matching one tag within one image.
type TLVIterator interface {
	// Next returns the next matching record's (offset, length). It
	// reports ok=false once the area is exhausted, with err nil.
	Next() (off uint32, length uint16, ok bool, err error)
}

// TLVReader begins a TLV walk over an image's metadata area.
type TLVReader interface {
	IterBegin(hdr *ImageHeader, area FlashArea, tag uint16, protectedOnly bool) (TLVIterator, error)
}
