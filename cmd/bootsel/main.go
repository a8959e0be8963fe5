// Command bootsel drives the image-selection core against a scenario
// file describing a slot layout, and reports the boot response or
// failure it produces. It exists to exercise the core end-to-end
// without real flash hardware, the way the teacher's own CLI drives
// boot-image operations against a file on disk instead of a device.
package main

import (
	"context"
	"fmt"
	"os"

	"bootsel/internal/blog"
)

func usage() {
	fmt.Fprintf(os.Stderr, `bootsel - image-selection core scenario runner

Usage: %s <scenario.json>

<scenario.json> describes the mode, per-image slot layout, and stub
hook behavior for one simulated boot attempt. See scenario.go for the
field reference.

Return values:
  0: boot succeeded    1: boot failed    2: scenario error
`, os.Args[0])
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage()
		return 2
	}

	sc, err := loadScenario(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootsel:", err)
		return 2
	}

	state, err := buildState(sc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootsel:", err)
		return 2
	}

	resp, ret := state.BootGo(context.Background())
	if !ret.IsSuccess() {
		fmt.Fprintln(os.Stderr, "bootsel: boot failed")
		return 1
	}

	fmt.Printf("boot ok: image=%d slot=%d device=%d offset=%d version=%d.%d.%d+%d\n",
		resp.Image, resp.Slot, resp.Area.DeviceID(), resp.Area.Offset(),
		resp.Header.Version.Major, resp.Header.Version.Minor, resp.Header.Version.Revision, resp.Header.Version.Build)
	if resp.RAMImage != nil {
		fmt.Printf("ram image staged: %s\n", blog.Size(uint64(len(resp.RAMImage))))
	}
	return 0
}
