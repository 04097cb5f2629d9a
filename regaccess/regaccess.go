// Package regaccess provides register access scoped to a single DMA FIFO
// channel.
//
// A block exposes one register transport shared by all of its channels.
// Channel cores only ever talk to their own channel, so they are handed an
// Adapter that closes over the channel index and forwards every access to
// the shared transport.
package regaccess

// A Transport reads and writes the registers of every channel of a block.
type Transport interface {
	// Write32 writes a 32-bit value to a settings register of a channel.
	Write32(addr, data uint32, ch int) error

	// Read32 reads a 32-bit readback register of a channel.
	Read32(addr uint32, ch int) (uint32, error)

	// Read64 reads a 64-bit readback register of a channel.
	Read64(addr uint32, ch int) (uint64, error)
}

// Iface is the register capability of a single channel.
type Iface interface {
	Poke32(addr, data uint32) error
	Peek32(addr uint32) (uint32, error)
	Peek64(addr uint32) (uint64, error)
}

// Write32Func writes a 32-bit register of the given channel.
type Write32Func func(addr, data uint32, ch int) error

// Read32Func reads a 32-bit register of the given channel.
type Read32Func func(addr uint32, ch int) (uint32, error)

// Read64Func reads a 64-bit register of the given channel.
type Read64Func func(addr uint32, ch int) (uint64, error)

// Adapter binds three register delegates to a fixed channel index.
type Adapter struct {
	write32 Write32Func
	read32  Read32Func
	read64  Read64Func
	ch      int
}

// NewAdapter creates an Adapter that forwards to the given delegates with
// the channel argument fixed to ch.
func NewAdapter(
	write32 Write32Func,
	read32 Read32Func,
	read64 Read64Func,
	ch int,
) *Adapter {
	if write32 == nil || read32 == nil || read64 == nil {
		panic("regaccess: all register delegates must be set")
	}

	return &Adapter{
		write32: write32,
		read32:  read32,
		read64:  read64,
		ch:      ch,
	}
}

// ForChannel creates an Adapter that accesses channel ch of t.
func ForChannel(t Transport, ch int) *Adapter {
	return NewAdapter(t.Write32, t.Read32, t.Read64, ch)
}

// Channel returns the channel index the adapter is bound to.
func (a *Adapter) Channel() int {
	return a.ch
}

// Poke32 writes a 32-bit register of the bound channel.
func (a *Adapter) Poke32(addr, data uint32) error {
	return a.write32(addr, data, a.ch)
}

// Peek32 reads a 32-bit register of the bound channel.
func (a *Adapter) Peek32(addr uint32) (uint32, error) {
	return a.read32(addr, a.ch)
}

// Peek64 reads a 64-bit register of the bound channel.
func (a *Adapter) Peek64(addr uint32) (uint64, error) {
	return a.read64(addr, a.ch)
}
