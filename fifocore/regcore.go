package fifocore

import (
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/dmafifo/regaccess"
)

// MinDepth is the smallest region a channel can be given.
const MinDepth = 8 * 1024

var (
	// ErrDepthTooSmall is returned when a region is smaller than MinDepth.
	ErrDepthTooSmall = errors.New("fifocore: depth is smaller than the minimum")

	// ErrDepthNotPowerOfTwo is returned when a region size cannot be
	// expressed as an address mask.
	ErrDepthNotPowerOfTwo = errors.New("fifocore: depth must be a power of 2")

	// ErrRegionOverflow is returned when a region runs past the 32-bit
	// address space.
	ErrRegionOverflow = errors.New("fifocore: region exceeds the address space")

	// ErrBISTBusy is returned when a self-test is requested while another
	// one is running.
	ErrBISTBusy = errors.New("fifocore: self-test already running")

	// ErrBISTTimeout is returned when the self-test does not finish in time.
	ErrBISTTimeout = errors.New("fifocore: self-test timed out")

	// ErrNoThroughput is returned when no passing extended self-test has
	// produced a rate.
	ErrNoThroughput = errors.New("fifocore: no self-test throughput available")
)

// RegCore is a Core that is controlled through a regaccess.Iface. It is not
// safe for concurrent use; callers serialize access.
type RegCore struct {
	iface  regaccess.Iface
	srBase uint32
	rbBase uint32

	extBIST        bool
	bistPassed     bool
	bistTimeout    time.Duration
	pollInterval   time.Duration
	bistPackets    uint32
	bistPacketSize uint32
}

// Builder configures how RegCores are made.
type Builder struct {
	bistTimeout    time.Duration
	pollInterval   time.Duration
	bistPackets    uint32
	bistPacketSize uint32
}

// MakeBuilder returns a Builder with default self-test settings.
func MakeBuilder() Builder {
	return Builder{
		bistTimeout:    500 * time.Millisecond,
		pollInterval:   time.Millisecond,
		bistPackets:    DefaultBISTPackets,
		bistPacketSize: DefaultBISTPktSizeInWord * BISTConfigWordByteSize,
	}
}

// WithBISTTimeout sets how long a self-test may run.
func (b Builder) WithBISTTimeout(timeout time.Duration) Builder {
	b.bistTimeout = timeout
	return b
}

// WithPollInterval sets the delay between two self-test status reads.
func (b Builder) WithPollInterval(interval time.Duration) Builder {
	b.pollInterval = interval
	return b
}

// WithBISTPackets sets the amount of traffic a self-test generates.
func (b Builder) WithBISTPackets(packets, packetByteSize uint32) Builder {
	b.bistPackets = packets
	b.bistPacketSize = packetByteSize

	return b
}

// Maker returns a Maker that builds RegCores with the builder's settings.
func (b Builder) Maker() Maker {
	return func(iface regaccess.Iface, srBase, rbBase uint32) (Core, error) {
		c, err := b.Build(iface, srBase, rbBase)
		if err != nil {
			return nil, err
		}

		return c, nil
	}
}

// Build creates a RegCore and probes its self-test capabilities.
func (b Builder) Build(
	iface regaccess.Iface,
	srBase, rbBase uint32,
) (*RegCore, error) {
	c := &RegCore{
		iface:          iface,
		srBase:         srBase,
		rbBase:         rbBase,
		bistTimeout:    b.bistTimeout,
		pollInterval:   b.pollInterval,
		bistPackets:    b.bistPackets,
		bistPacketSize: b.bistPacketSize,
	}

	status, err := c.peek32(RBFifoStatus)
	if err != nil {
		return nil, fmt.Errorf("fifocore: probing FIFO status: %w", err)
	}

	c.extBIST = status&FifoStatusExtBIST != 0

	return c, nil
}

// Make builds a RegCore with default settings. It satisfies Maker.
func Make(iface regaccess.Iface, srBase, rbBase uint32) (Core, error) {
	return MakeBuilder().Maker()(iface, srBase, rbBase)
}

// ExtBISTSupported reports whether the hardware reports extended
// self-test results.
func (c *RegCore) ExtBISTSupported() bool {
	return c.extBIST
}

// Resize programs a new region. The FIFO is cleared while the region
// registers change.
func (c *RegCore) Resize(baseAddr, depth uint32) error {
	if depth < MinDepth {
		return fmt.Errorf("%w: %d < %d", ErrDepthTooSmall, depth, MinDepth)
	}

	if depth&(depth-1) != 0 {
		return fmt.Errorf("%w: %d", ErrDepthNotPowerOfTwo, depth)
	}

	if uint64(baseAddr)+uint64(depth) > 1<<32 {
		return fmt.Errorf("%w: base 0x%x, depth 0x%x",
			ErrRegionOverflow, baseAddr, depth)
	}

	writes := []struct {
		reg, value uint32
	}{
		{SRFifoCtrl, FifoCtrlClear},
		{SRBaseAddr, baseAddr},
		{SRAddrMask, ^(depth - 1)},
		{SRFifoCtrl, 0},
	}

	for _, w := range writes {
		if err := c.poke32(w.reg, w.value); err != nil {
			return fmt.Errorf("fifocore: resize: %w", err)
		}
	}

	return nil
}

// RunBIST runs the self-test and waits for it to finish. In legacy mode the
// result is 0 for pass and 1 for fail. In extended mode it is the error
// code reported by the hardware.
//
// Once the self-test has been started, the FIFO is released from reset
// whether or not the test completes.
func (c *RegCore) RunBIST() (code uint32, err error) {
	c.bistPassed = false

	status, err := c.peek32(RBBISTStatus)
	if err != nil {
		return 0, fmt.Errorf("fifocore: reading self-test status: %w", err)
	}

	if status&BISTStatusRunning != 0 {
		return 0, ErrBISTBusy
	}

	defer func() {
		releaseErr := c.poke32(SRFifoCtrl, 0)
		if releaseErr != nil && err == nil {
			code = 0
			c.bistPassed = false
			err = fmt.Errorf("fifocore: releasing FIFO: %w", releaseErr)
		}
	}()

	err = c.startBIST()
	if err != nil {
		return 0, err
	}

	status, err = c.waitBISTDone()
	if err != nil {
		return 0, err
	}

	code = c.bistCode(status)
	c.bistPassed = code == 0

	return code, nil
}

func (c *RegCore) startBIST() error {
	writes := []struct {
		reg, value uint32
	}{
		{SRFifoCtrl, FifoCtrlClear},
		{SRBISTConfig, EncodeBISTConfig(c.bistPackets, c.bistPacketSize)},
		{SRBISTCtrl, BISTCtrlGo},
		{SRBISTCtrl, 0},
	}

	for _, w := range writes {
		if err := c.poke32(w.reg, w.value); err != nil {
			return fmt.Errorf("fifocore: starting self-test: %w", err)
		}
	}

	return nil
}

func (c *RegCore) waitBISTDone() (uint32, error) {
	deadline := time.Now().Add(c.bistTimeout)

	for {
		status, err := c.peek32(RBBISTStatus)
		if err != nil {
			return 0, fmt.Errorf("fifocore: polling self-test: %w", err)
		}

		if status&BISTStatusDone != 0 {
			return status, nil
		}

		if time.Now().After(deadline) {
			return 0, ErrBISTTimeout
		}

		time.Sleep(c.pollInterval)
	}
}

func (c *RegCore) bistCode(status uint32) uint32 {
	if !c.extBIST {
		if status&BISTStatusFailed != 0 {
			return 1
		}

		return 0
	}

	return status >> BISTStatusCodeShift
}

// BISTThroughput returns the rate measured by the last self-test in bytes
// per second. It is only available after a passing extended self-test.
func (c *RegCore) BISTThroughput() (float64, error) {
	if !c.extBIST || !c.bistPassed {
		return 0, ErrNoThroughput
	}

	xfer, err := c.peek64(RBBISTXferCount)
	if err != nil {
		return 0, fmt.Errorf("fifocore: reading transfer count: %w", err)
	}

	cycles, err := c.peek64(RBBISTCycleCount)
	if err != nil {
		return 0, fmt.Errorf("fifocore: reading cycle count: %w", err)
	}

	clkRate, err := c.peek32(RBBusClkRate)
	if err != nil {
		return 0, fmt.Errorf("fifocore: reading bus clock rate: %w", err)
	}

	if cycles == 0 {
		return 0, ErrNoThroughput
	}

	return float64(xfer) * float64(clkRate) / float64(cycles), nil
}

func (c *RegCore) poke32(reg, value uint32) error {
	return c.iface.Poke32(c.srBase+reg, value)
}

func (c *RegCore) peek32(reg uint32) (uint32, error) {
	return c.iface.Peek32(c.rbBase + reg)
}

func (c *RegCore) peek64(reg uint32) (uint64, error) {
	return c.iface.Peek64(c.rbBase + reg)
}
