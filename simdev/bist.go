package simdev

import (
	"bytes"

	"github.com/sarchlab/dmafifo/fifocore"
)

// runBIST executes a self-test synchronously. It writes a pseudo-random
// pattern over the head of the channel region, reads it back and compares.
func (d *Device) runBIST(ch int, c *channelState) {
	c.bistStatus = fifocore.BISTStatusRunning
	c.xferCount = 0
	c.cycleCount = 0

	code := d.exerciseRegion(ch, c)
	if c.injectedCode != 0 {
		code = c.injectedCode
	}

	status := uint32(fifocore.BISTStatusDone)
	if code != BISTCodeOK {
		status |= fifocore.BISTStatusFailed
	}

	c.bistStatus = status | code<<fifocore.BISTStatusCodeShift
	c.cycleCount = c.xferCount / uint64(d.busWidth)
}

func (d *Device) exerciseRegion(ch int, c *channelState) uint32 {
	if c.addrMask == 0 {
		return BISTCodeNoRegion
	}

	packets, packetSize := fifocore.DecodeBISTConfig(c.bistConfig)
	span := min(uint64(packets)*uint64(packetSize), c.depth())
	base := uint64(c.baseAddr)

	if base+c.depth() > d.storage.Capacity() {
		return BISTCodeOutOfRange
	}

	pattern := makePattern(uint32(ch)<<24^c.baseAddr, span)

	err := d.storage.Write(base, pattern)
	if err != nil {
		return BISTCodeOutOfRange
	}

	readBack, err := d.storage.Read(base, span)
	if err != nil {
		return BISTCodeOutOfRange
	}

	c.xferCount = 2 * span

	if c.corruptByte && len(readBack) > 0 {
		readBack[len(readBack)/2] ^= 0x01
	}

	if !bytes.Equal(pattern, readBack) {
		return BISTCodeMismatch
	}

	return BISTCodeOK
}

// makePattern fills n bytes from a 32-bit xorshift generator.
func makePattern(seed uint32, n uint64) []byte {
	if seed == 0 {
		seed = 0x9e3779b9
	}

	p := make([]byte, n)
	x := seed

	for i := range p {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		p[i] = byte(x)
	}

	return p
}
