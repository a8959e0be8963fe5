package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"bootsel"
	"bootsel/flashsim"
	"bootsel/internal/blog"
)

// scenario is the on-disk description the CLI harness drives BootGo
// with. It plays the role the teacher's on-disk boot.img plays for
// magiskboot's unpack/repack commands: a single file that fully
// determines one run.
type scenario struct {
	Mode               string         `json:"mode"`
	Revert             bool           `json:"revert"`
	HWRollbackProt     bool           `json:"hw_rollback_prot"`
	HWRollbackProtLock bool           `json:"hw_rollback_prot_lock"`
	RAMStagingSize     uint32         `json:"ram_staging_size"`
	LogLevel           string         `json:"log_level,omitempty"`
	Images             []scenarioImg  `json:"images"`
}

// parseLogLevel maps a scenario's log_level string to a slog.Level,
// defaulting to Info the way blog.Default does.
func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type scenarioImg struct {
	Masked bool            `json:"masked"`
	Slots  [2]scenarioSlot `json:"slots"`
}

type scenarioSlot struct {
	Size         uint32          `json:"size"`
	Magic        bool            `json:"magic_ok"`
	LoadAddr     uint32          `json:"load_addr"`
	RomFixed     bool            `json:"rom_fixed"`
	Version      [4]uint32       `json:"version"` // major, minor, revision, build
	ValidateFail bool            `json:"validate_fail"`
	Trailer      *scenarioTrailer `json:"trailer,omitempty"`
}

type scenarioTrailer struct {
	MagicGood bool `json:"magic_good"`
	CopyDone  bool `json:"copy_done"`
	ImageOk   bool `json:"image_ok"`
}

func loadScenario(path string) (*scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc scenario
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &sc, nil
}

// buildState materializes a scenario into in-memory flash areas and a
// BootLoaderState wired with stub hooks.
func buildState(sc *scenario) (*bootsel.BootLoaderState, error) {
	var mode bootsel.Mode
	switch sc.Mode {
	case "direct_xip", "":
		mode = bootsel.ModeDirectXIP
	case "ram_load":
		mode = bootsel.ModeRAMLoad
	case "swap":
		mode = bootsel.ModeSwap
	default:
		return nil, fmt.Errorf("unknown mode %q", sc.Mode)
	}

	cfg := bootsel.Config{
		Mode:               mode,
		Revert:             sc.Revert,
		HWRollbackProt:     sc.HWRollbackProt,
		HWRollbackProtLock: sc.HWRollbackProtLock,
		NumImages:          len(sc.Images),
		RAMStagingSize:     sc.RAMStagingSize,
	}
	if cfg.RAMStagingSize == 0 {
		cfg.RAMStagingSize = 1 << 20
	}

	areas := make([][2]bootsel.AreaFactory, len(sc.Images))
	validateFail := map[[2]int]bool{}

	for i, img := range sc.Images {
		for slotIdx, slot := range img.Slots {
			buf, err := encodeSlot(slot)
			if err != nil {
				return nil, fmt.Errorf("image %d slot %d: %w", i, slotIdx, err)
			}
			deviceID := uint8(i*2 + slotIdx)
			mem := flashsim.NewMemArea(deviceID, uint32(slotIdx)*slot.Size, buf)
			i, slotIdx, mem := i, slotIdx, mem
			areas[i][slotIdx] = func(ctx context.Context) (bootsel.FlashArea, error) {
				return mem, nil
			}
			if slot.ValidateFail {
				validateFail[[2]int{i, slotIdx}] = true
			}
		}
	}

	hooks := bootsel.Hooks{
		Validator:       &stubValidator{fail: validateFail},
		FindSlot:        bootsel.NoFindSlotHook{},
		SecurityCounter: newStubCounters(),
		RAMStaging:      &bootsel.DefaultRAMStaging{},
		SharedData:      bootsel.NopSharedDataSink{},
		TLVReader:       bootsel.DefaultTLVReader{},
		Codec:           bootsel.DefaultCodec{},
	}

	log := blog.New(os.Stderr, parseLogLevel(sc.LogLevel))

	return bootsel.NewBootLoaderState(cfg, areas, hooks, log), nil
}

func encodeSlot(slot scenarioSlot) ([]byte, error) {
	buf := make([]byte, slot.Size)

	var magic uint32
	if slot.Magic {
		magic = bootsel.ImageMagic
	} else {
		magic = 0
	}
	var flags uint32
	if slot.RomFixed {
		flags = bootsel.ImageHeaderFlagRomFixed
	}

	hdr := struct {
		Magic          uint32
		LoadAddr       uint32
		HdrSize        uint16
		ProtectTLVSize uint16
		ImgSize        uint32
		Flags          uint32
		Major          uint8
		Minor          uint8
		Revision       uint16
		Build          uint32
		Pad1           uint32
	}{
		Magic:          magic,
		LoadAddr:       slot.LoadAddr,
		HdrSize:        bootsel.ImageHeaderSize,
		ProtectTLVSize: 0,
		ImgSize:        0,
		Flags:          flags,
		Major:          uint8(slot.Version[0]),
		Minor:          uint8(slot.Version[1]),
		Revision:       uint16(slot.Version[2]),
		Build:          slot.Version[3],
	}

	out := new(bytes.Buffer)
	if err := binary.Write(out, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	copy(buf, out.Bytes())

	if slot.Trailer != nil {
		writeTrailer(buf, *slot.Trailer)
	}

	return buf, nil
}

const trailerSize = 19

func writeTrailer(buf []byte, t scenarioTrailer) {
	if len(buf) < trailerSize {
		return
	}
	off := len(buf) - trailerSize
	for i := 0; i < trailerSize; i++ {
		buf[off+i] = 0xff
	}
	if t.MagicGood {
		words := []uint32{0xf395c277, 0x7fefd260, 0x0f505235, 0x8079b62c}
		for i, w := range words {
			binary.LittleEndian.PutUint32(buf[off+4*i:], w)
		}
	}
	if t.CopyDone {
		buf[off+16] = 0x01
	}
	if t.ImageOk {
		buf[off+17] = 0x01
	}
}
