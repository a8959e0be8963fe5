package main

import (
	"context"
	"fmt"

	"bootsel"
)

// stubValidator stands in for the real signature/hash verifier, which
// lives outside this core. The scenario file marks which (image, slot)
// pairs should fail, since this harness has no real key material to
// check against.
type stubValidator struct {
	fail map[[2]int]bool
}

func (v *stubValidator) ValidateSlot(ctx context.Context, state *bootsel.BootLoaderState, image int, slot bootsel.BootSlot) error {
	if v.fail[[2]int{image, int(slot)}] {
		return fmt.Errorf("scenario marked image %d slot %d as failing validation", image, slot)
	}
	return nil
}

// stubCounters is an in-memory SecurityCounterService: one counter per
// image, shared across both its slots, with an optional one-way lock.
type stubCounters struct {
	values [16]uint32
	locked [16]bool
}

func newStubCounters() *stubCounters {
	return &stubCounters{}
}

func (c *stubCounters) Read(image int, slot bootsel.BootSlot) (uint32, error) {
	return c.values[image], nil
}

func (c *stubCounters) Write(image int, slot bootsel.BootSlot, value uint32) error {
	if c.locked[image] {
		return fmt.Errorf("security counter for image %d is locked", image)
	}
	c.values[image] = value
	return nil
}

func (c *stubCounters) Lock(image int) error {
	c.locked[image] = true
	return nil
}
