// Package flashsim provides two FlashArea-shaped backings for the
// bootsel core: one backed by a real file via mmap, one backed by a
// plain byte slice for fast unit tests and the scenario-driven CLI
// harness. Neither imports the bootsel package — bootsel.FlashArea is
// satisfied structurally, the way the teacher repo keeps its mmap use
// local to the file it touches rather than behind a shared interface.
package flashsim

import (
	"context"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MMapArea backs a flash area with a real file, memory-mapped for the
// lifetime of the handle.
type MMapArea struct {
	deviceID uint8
	offset   uint32
	size     uint32
	file     *os.File
	region   mmap.MMap
}

// OpenMMap opens path (which must already be at least offset+size
// bytes long) and maps size bytes of it, starting at offset, read-write.
func OpenMMap(deviceID uint8, offset, size uint32, path string) (*MMapArea, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	region, err := mmap.MapRegion(f, int(size), mmap.RDWR, 0, int64(offset))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &MMapArea{deviceID: deviceID, offset: offset, size: size, file: f, region: region}, nil
}

func (a *MMapArea) DeviceID() uint8 { return a.deviceID }
func (a *MMapArea) Offset() uint32  { return a.offset }
func (a *MMapArea) Size() uint32    { return a.size }

func (a *MMapArea) boundsCheck(off uint32, n int) error {
	if uint64(off)+uint64(n) > uint64(a.size) {
		return fmt.Errorf("flashsim: access [%d,%d) out of bounds for area of size %d", off, uint64(off)+uint64(n), a.size)
	}
	return nil
}

func (a *MMapArea) Read(ctx context.Context, off uint32, buf []byte) error {
	if err := a.boundsCheck(off, len(buf)); err != nil {
		return err
	}
	copy(buf, a.region[off:])
	return nil
}

func (a *MMapArea) Write(ctx context.Context, off uint32, buf []byte) error {
	if err := a.boundsCheck(off, len(buf)); err != nil {
		return err
	}
	copy(a.region[off:], buf)
	return nil
}

func (a *MMapArea) Scramble(ctx context.Context, off, size uint32, preserve bool) error {
	if err := a.boundsCheck(off, int(size)); err != nil {
		return err
	}
	for i := uint32(0); i < size; i++ {
		a.region[off+i] = 0xff
	}
	return nil
}

func (a *MMapArea) Close() error {
	if a.region != nil {
		if err := a.region.Unmap(); err != nil {
			a.file.Close()
			return err
		}
		a.region = nil
	}
	return a.file.Close()
}

// MemArea backs a flash area with a plain byte slice, for tests and
// scenario-driven CLI runs that have no real flash device to open.
type MemArea struct {
	deviceID uint8
	offset   uint32
	data     []byte
}

// NewMemArea wraps an existing buffer (not copied) as a flash area.
func NewMemArea(deviceID uint8, offset uint32, data []byte) *MemArea {
	return &MemArea{deviceID: deviceID, offset: offset, data: data}
}

func (a *MemArea) DeviceID() uint8 { return a.deviceID }
func (a *MemArea) Offset() uint32  { return a.offset }
func (a *MemArea) Size() uint32    { return uint32(len(a.data)) }

func (a *MemArea) boundsCheck(off uint32, n int) error {
	if uint64(off)+uint64(n) > uint64(len(a.data)) {
		return fmt.Errorf("flashsim: access [%d,%d) out of bounds for area of size %d", off, uint64(off)+uint64(n), len(a.data))
	}
	return nil
}

func (a *MemArea) Read(ctx context.Context, off uint32, buf []byte) error {
	if err := a.boundsCheck(off, len(buf)); err != nil {
		return err
	}
	copy(buf, a.data[off:])
	return nil
}

func (a *MemArea) Write(ctx context.Context, off uint32, buf []byte) error {
	if err := a.boundsCheck(off, len(buf)); err != nil {
		return err
	}
	copy(a.data[off:], buf)
	return nil
}

func (a *MemArea) Scramble(ctx context.Context, off, size uint32, preserve bool) error {
	if err := a.boundsCheck(off, int(size)); err != nil {
		return err
	}
	for i := uint32(0); i < size; i++ {
		a.data[off+i] = 0xff
	}
	return nil
}

func (a *MemArea) Close() error { return nil }
