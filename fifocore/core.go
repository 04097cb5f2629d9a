// Package fifocore drives a single DMA FIFO channel through its registers.
package fifocore

import (
	"github.com/sarchlab/dmafifo/regaccess"
)

// A Core programs the region of one DMA FIFO channel and runs its
// built-in self-test.
type Core interface {
	// Resize makes the channel use depth bytes of the shared buffer
	// starting at baseAddr.
	Resize(baseAddr, depth uint32) error

	// ExtBISTSupported reports whether the self-test reports an error code
	// and a transfer rate instead of a plain pass/fail bit.
	ExtBISTSupported() bool

	// RunBIST runs the self-test and returns its result code. Zero means
	// the test passed.
	RunBIST() (uint32, error)

	// BISTThroughput returns the rate, in bytes per second, measured by the
	// last passing extended self-test.
	BISTThroughput() (float64, error)
}

// Maker creates the Core of one channel. srBase and rbBase are the offsets
// of the core's settings and readback register windows.
type Maker func(iface regaccess.Iface, srBase, rbBase uint32) (Core, error)
