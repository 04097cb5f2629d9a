package dmafifo

import "github.com/sarchlab/dmafifo/hooking"

// HookPosBISTStart is invoked before a channel's self-test runs. The hook
// item is the channel index.
var HookPosBISTStart = &hooking.HookPos{Name: "BISTStart"}

// HookPosBISTDone is invoked after a channel's self-test. The detail is a
// BISTResult.
var HookPosBISTDone = &hooking.HookPos{Name: "BISTDone"}

// HookPosResize is invoked after every attempt to change a channel's
// region. The detail is a ResizeEvent.
var HookPosResize = &hooking.HookPos{Name: "Resize"}

// BISTResult is the outcome of one self-test.
type BISTResult struct {
	Channel  int
	Extended bool
	Code     uint32

	// Throughput is in bytes per second. It is only measured by passing
	// extended self-tests.
	Throughput float64
}

// Passed tells if the self-test succeeded.
func (r BISTResult) Passed() bool {
	return r.Code == 0
}

// ResizeEvent describes a region change. Err is nil if the change was
// committed.
type ResizeEvent struct {
	Channel int
	Old     Region
	New     Region
	Err     error
}
