package bootsel

import "context"

// BootSlot identifies which of an image's two slots is in play.
// BootSlotNone means "no slot chosen".
type BootSlot int

const (
	BootSlotPrimary   BootSlot = 0
	BootSlotSecondary BootSlot = 1
	BootSlotNone      BootSlot = -1
)

const numSlots = 2

// Mode selects one of mcuboot's three mutually-exclusive top-level
// orchestrations. SWAP is wired only as a not-implemented stub (see
// orchestrator.go); this core's ground truth only retrieved the
// DIRECT_XIP and RAM_LOAD loaders.
type Mode int

const (
	ModeDirectXIP Mode = iota
	ModeRAMLoad
	ModeSwap
)

// Config mirrors mcuboot's Kconfig-selected compile-time configuration
// as a runtime value, since Go has no preprocessor to select among
// mode implementations at build time.
type Config struct {
	Mode                Mode
	Revert              bool // DIRECT_XIP_REVERT / RAM_LOAD_REVERT
	HWRollbackProt      bool
	HWRollbackProtLock  bool
	NumImages           int
	RAMStagingSize      uint32 // fixed per build; size of the RAM staging area
}

// SlotUsage is the per-image slot-usage record, grounded on
// boot_loader_state's slot_usage array.
type SlotUsage struct {
	SlotAvailable [numSlots]bool
	ActiveSlot    BootSlot
	SwapState     BootSwapState
	RAMImage      []byte // non-nil once C6 has loaded this image into RAM
}

// AreaFactory opens one (image, slot) flash area on demand, used so
// BootLoaderState can defer actually mmap-ing or allocating anything
// until openAllAreas runs. Exported so callers (tests, the CLI
// harness) can build area layouts without a helper in this package.
type AreaFactory func(ctx context.Context) (FlashArea, error)

// BootLoaderState is the Go counterpart of struct boot_loader_state:
// the per-image slot-usage records, the image mask, and the cached
// headers. It is constructed once per boot attempt and passed
// explicitly to every component — there is no hidden mutable
// BOOT_CURR_IMG cursor.
type BootLoaderState struct {
	Config Config

	ImgMask   []bool
	SlotUsage []SlotUsage
	Headers   [][numSlots]*ImageHeader
	Areas     [][numSlots]FlashArea

	areaFactories [][numSlots]AreaFactory

	Hooks Hooks
	Log   logger
}

// logger is the subset of *blog.Logger this package depends on,
// declared locally so tests can supply a no-op implementation without
// importing internal/blog.
type logger interface {
	Dbg(msg string, args ...any)
	Inf(msg string, args ...any)
	Wrn(msg string, args ...any)
	Err(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Dbg(string, ...any) {}
func (nopLogger) Inf(string, ...any) {}
func (nopLogger) Wrn(string, ...any) {}
func (nopLogger) Err(string, ...any) {}

// Hooks bundles the external collaborators the core consumes but does
// not implement itself.
type Hooks struct {
	Validator       Validator
	FindSlot        FindSlotHook
	SecurityCounter SecurityCounterService
	RAMStaging      RAMStaging
	SharedData      SharedDataSink
	TLVReader       TLVReader
	Codec           PayloadCodec
}

// NewBootLoaderState builds a fresh state for NumImages images, each
// with its own per-slot area factory. log may be nil, in which case a
// no-op logger is used.
func NewBootLoaderState(cfg Config, areas [][numSlots]AreaFactory, hooks Hooks, log logger) *BootLoaderState {
	n := cfg.NumImages
	s := &BootLoaderState{
		Config:        cfg,
		ImgMask:       make([]bool, n),
		SlotUsage:     make([]SlotUsage, n),
		Headers:       make([][numSlots]*ImageHeader, n),
		Areas:         make([][numSlots]FlashArea, n),
		areaFactories: areas,
		Hooks:         hooks,
		Log:           log,
	}
	if s.Log == nil {
		s.Log = nopLogger{}
	}
	for i := range s.SlotUsage {
		s.SlotUsage[i].ActiveSlot = BootSlotNone
	}
	return s
}

// SetImageMask disables (or re-enables) an image for this boot. Masked
// images are skipped by every per-image loop (C2, C4, C7, C8, C9).
func (s *BootLoaderState) SetImageMask(image int, masked bool) {
	s.ImgMask[image] = masked
}

func (s *BootLoaderState) header(image int, slot BootSlot) *ImageHeader {
	return s.Headers[image][slot]
}
