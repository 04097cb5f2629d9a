package simdev

import (
	"github.com/sarchlab/dmafifo/fifocore"
)

// MiB is 2^20 bytes.
const MiB = 1024 * 1024

// A Builder creates simulated devices.
type Builder struct {
	numChannels int
	capacity    uint64
	busClkRate  uint32
	busWidth    uint32
	srBase      uint32
	rbBase      uint32
	extBIST     bool
}

// MakeBuilder returns a Builder with the defaults of a two-channel device
// with a 64 MiB staging buffer.
func MakeBuilder() Builder {
	return Builder{
		numChannels: 2,
		capacity:    64 * MiB,
		busClkRate:  166666667,
		busWidth:    8,
		srBase:      128 * 4,
		rbBase:      0,
		extBIST:     true,
	}
}

// WithNumChannels sets the number of FIFO channels.
func (b Builder) WithNumChannels(n int) Builder {
	b.numChannels = n
	return b
}

// WithCapacity sets the size of the shared staging buffer in bytes.
func (b Builder) WithCapacity(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithBusClkRate sets the bus clock rate reported to the cores, in Hz.
func (b Builder) WithBusClkRate(hz uint32) Builder {
	b.busClkRate = hz
	return b
}

// WithBusWidth sets how many bytes move per bus cycle.
func (b Builder) WithBusWidth(bytes uint32) Builder {
	b.busWidth = bytes
	return b
}

// WithRegisterBases sets where the settings and readback windows of the
// FIFO cores live.
func (b Builder) WithRegisterBases(srBase, rbBase uint32) Builder {
	b.srBase = srBase
	b.rbBase = rbBase

	return b
}

// WithLegacyBIST makes every channel report pass/fail only.
func (b Builder) WithLegacyBIST() Builder {
	b.extBIST = false
	return b
}

// Build creates the device.
func (b Builder) Build(name string) *Device {
	if b.numChannels <= 0 {
		panic("simdev: a device needs at least one channel")
	}

	if b.busWidth == 0 {
		panic("simdev: bus width must not be zero")
	}

	d := &Device{
		name:       name,
		storage:    NewStorage(b.capacity),
		busClkRate: b.busClkRate,
		busWidth:   b.busWidth,
		srBase:     b.srBase,
		rbBase:     b.rbBase,
	}

	for i := 0; i < b.numChannels; i++ {
		d.channels = append(d.channels, &channelState{
			extBIST:    b.extBIST,
			bistConfig: fifocore.EncodeBISTConfig(0, 0),
		})
	}

	return d
}
