// Package simdev simulates the registers and the staging buffer of a
// multi-channel DMA FIFO so that the driver can be exercised without
// hardware.
package simdev

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/dmafifo/fifocore"
)

// Self-test result codes reported by the simulated hardware.
const (
	BISTCodeOK         = 0
	BISTCodeNoRegion   = 1 // the channel has no region programmed
	BISTCodeOutOfRange = 2 // the region does not fit in the buffer
	BISTCodeMismatch   = 3 // data read back differs from data written
)

var (
	// ErrNoSuchChannel is returned for accesses to a channel the device
	// does not have.
	ErrNoSuchChannel = errors.New("simdev: no such channel")

	// ErrUnknownRegister is returned for accesses outside the register map.
	ErrUnknownRegister = errors.New("simdev: unknown register")
)

type channelState struct {
	baseAddr   uint32
	addrMask   uint32
	fifoCtrl   uint32
	bistConfig uint32
	bistStatus uint32
	xferCount  uint64
	cycleCount uint64

	extBIST      bool
	injectedCode uint32
	corruptByte  bool
	writeErr     error
}

func (c *channelState) depth() uint64 {
	return uint64(^c.addrMask) + 1
}

// Device is a simulated DMA FIFO block. It implements regaccess.Transport.
type Device struct {
	sync.Mutex

	name       string
	storage    *Storage
	channels   []*channelState
	busClkRate uint32
	busWidth   uint32
	srBase     uint32
	rbBase     uint32
}

// Name returns the name of the device.
func (d *Device) Name() string {
	return d.name
}

// NumChannels returns the number of FIFO channels.
func (d *Device) NumChannels() int {
	return len(d.channels)
}

// Storage returns the shared staging buffer.
func (d *Device) Storage() *Storage {
	return d.storage
}

func (d *Device) channel(ch int) (*channelState, error) {
	if ch < 0 || ch >= len(d.channels) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchChannel, ch)
	}

	return d.channels[ch], nil
}

// Write32 writes a settings register.
func (d *Device) Write32(addr, data uint32, ch int) error {
	d.Lock()
	defer d.Unlock()

	c, err := d.channel(ch)
	if err != nil {
		return err
	}

	if c.writeErr != nil {
		return c.writeErr
	}

	if addr < d.srBase {
		return fmt.Errorf("%w: write 0x%x", ErrUnknownRegister, addr)
	}

	switch addr - d.srBase {
	case fifocore.SRBaseAddr:
		c.baseAddr = data
	case fifocore.SRAddrMask:
		c.addrMask = data
	case fifocore.SRFifoCtrl:
		c.fifoCtrl = data
	case fifocore.SRBISTConfig:
		c.bistConfig = data
	case fifocore.SRBISTCtrl:
		if data&fifocore.BISTCtrlGo != 0 {
			d.runBIST(ch, c)
		}
	default:
		return fmt.Errorf("%w: write 0x%x", ErrUnknownRegister, addr)
	}

	return nil
}

// Read32 reads a 32-bit readback register.
func (d *Device) Read32(addr uint32, ch int) (uint32, error) {
	d.Lock()
	defer d.Unlock()

	c, err := d.channel(ch)
	if err != nil {
		return 0, err
	}

	if addr < d.rbBase {
		return 0, fmt.Errorf("%w: read 0x%x", ErrUnknownRegister, addr)
	}

	switch addr - d.rbBase {
	case fifocore.RBFifoStatus:
		if c.extBIST {
			return fifocore.FifoStatusExtBIST, nil
		}

		return 0, nil
	case fifocore.RBBISTStatus:
		return c.bistStatus, nil
	case fifocore.RBBusClkRate:
		return d.busClkRate, nil
	}

	return 0, fmt.Errorf("%w: read 0x%x", ErrUnknownRegister, addr)
}

// Read64 reads a 64-bit readback register.
func (d *Device) Read64(addr uint32, ch int) (uint64, error) {
	d.Lock()
	defer d.Unlock()

	c, err := d.channel(ch)
	if err != nil {
		return 0, err
	}

	if addr < d.rbBase {
		return 0, fmt.Errorf("%w: read 0x%x", ErrUnknownRegister, addr)
	}

	switch addr - d.rbBase {
	case fifocore.RBBISTXferCount:
		return c.xferCount, nil
	case fifocore.RBBISTCycleCount:
		return c.cycleCount, nil
	}

	return 0, fmt.Errorf("%w: read 0x%x", ErrUnknownRegister, addr)
}

// Region returns the base address and depth currently programmed into a
// channel.
func (d *Device) Region(ch int) (baseAddr, depth uint32, err error) {
	d.Lock()
	defer d.Unlock()

	c, err := d.channel(ch)
	if err != nil {
		return 0, 0, err
	}

	return c.baseAddr, uint32(c.depth()), nil
}

// InjectBISTError makes the next self-tests of a channel fail with the
// given code. A zero code removes the fault.
func (d *Device) InjectBISTError(ch int, code uint32) {
	d.Lock()
	defer d.Unlock()

	d.mustGetChannel(ch).injectedCode = code
}

// InjectDataCorruption flips one bit of every self-test read-back of a
// channel.
func (d *Device) InjectDataCorruption(ch int, corrupt bool) {
	d.Lock()
	defer d.Unlock()

	d.mustGetChannel(ch).corruptByte = corrupt
}

// SetExtendedBIST selects whether a channel reports extended self-test
// results.
func (d *Device) SetExtendedBIST(ch int, ext bool) {
	d.Lock()
	defer d.Unlock()

	d.mustGetChannel(ch).extBIST = ext
}

// FailWrites makes every register write to a channel return err. A nil err
// removes the fault.
func (d *Device) FailWrites(ch int, err error) {
	d.Lock()
	defer d.Unlock()

	d.mustGetChannel(ch).writeErr = err
}

func (d *Device) mustGetChannel(ch int) *channelState {
	c, err := d.channel(ch)
	if err != nil {
		panic(err)
	}

	return c
}
