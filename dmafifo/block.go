// Package dmafifo manages the channels of a DMA FIFO block.
//
// Every channel owns a region of the block's shared staging buffer. The
// block brings all channels up at construction, checks them with their
// built-in self-test, and then lets the region of each channel be moved or
// resized at runtime, either directly or through the block's arguments in a
// configuration tree.
package dmafifo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/dmafifo/fifocore"
	"github.com/sarchlab/dmafifo/hooking"
	"github.com/sarchlab/dmafifo/proptree"
	"github.com/sarchlab/dmafifo/regaccess"
)

// ErrInvalidChannel is returned for channel indices the block does not
// have.
var ErrInvalidChannel = errors.New("dmafifo: invalid channel")

// A Region is a contiguous range of the shared staging buffer.
type Region struct {
	BaseAddr uint32
	Depth    uint32
}

// End returns the first address after the region.
func (r Region) End() uint64 {
	return uint64(r.BaseAddr) + uint64(r.Depth)
}

// Overlaps tells if two regions share at least one byte.
func (r Region) Overlaps(o Region) bool {
	return uint64(r.BaseAddr) < o.End() && uint64(o.BaseAddr) < r.End()
}

type channel struct {
	iface    regaccess.Iface
	core     fifocore.Core
	baseAddr uint32
	depth    uint32
}

func (c *channel) region() Region {
	return Region{BaseAddr: c.baseAddr, Depth: c.depth}
}

// Block is a DMA FIFO block. Blocks are created by a Builder and are
// always fully brought up.
//
// All region changes of all channels go through one lock. Hooks run while
// the lock is held and must not resize the block.
type Block struct {
	hooking.HookableBase

	name     string
	tree     *proptree.Tree
	argRoot  string
	argPaths []string
	mu       sync.RWMutex
	channels []*channel
}

// Name returns the name of the block.
func (b *Block) Name() string {
	return b.name
}

// NumChannels returns the number of FIFO channels.
func (b *Block) NumChannels() int {
	return len(b.channels)
}

func (b *Block) checkChannel(ch int) error {
	if ch < 0 || ch >= len(b.channels) {
		return fmt.Errorf("%w: %d (block %s has %d channels)",
			ErrInvalidChannel, ch, b.name, len(b.channels))
	}

	return nil
}

// Resize moves channel ch to depth bytes starting at baseAddr.
//
// The new region is committed only if the core accepts it, so a failed
// resize leaves the previous region in place.
func (b *Block) Resize(baseAddr, depth uint32, ch int) error {
	if err := b.checkChannel(ch); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.resizeLocked(ch, Region{BaseAddr: baseAddr, Depth: depth})
}

func (b *Block) resizeLocked(ch int, r Region) error {
	c := b.channels[ch]
	evt := ResizeEvent{Channel: ch, Old: c.region(), New: r}

	evt.Err = c.core.Resize(r.BaseAddr, r.Depth)
	if evt.Err == nil {
		c.baseAddr = r.BaseAddr
		c.depth = r.Depth
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosResize,
		Item:   ch,
		Detail: evt,
	})

	if evt.Err != nil {
		return fmt.Errorf("dmafifo: resizing channel %d of %s: %w",
			ch, b.name, evt.Err)
	}

	return nil
}

// BaseAddr returns the committed base address of channel ch.
func (b *Block) BaseAddr(ch int) (uint32, error) {
	r, err := b.Region(ch)
	return r.BaseAddr, err
}

// Depth returns the committed depth of channel ch.
func (b *Block) Depth(ch int) (uint32, error) {
	r, err := b.Region(ch)
	return r.Depth, err
}

// Region returns the committed region of channel ch. The base address and
// the depth always come from the same resize.
func (b *Block) Region(ch int) (Region, error) {
	if err := b.checkChannel(ch); err != nil {
		return Region{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.channels[ch].region(), nil
}

// Regions returns the committed regions of all channels at one instant.
func (b *Block) Regions() []Region {
	b.mu.RLock()
	defer b.mu.RUnlock()

	regions := make([]Region, len(b.channels))
	for i, c := range b.channels {
		regions[i] = c.region()
	}

	return regions
}

// Overlaps lists the pairs of channels whose regions overlap. The block
// never rejects overlapping regions; whoever configures the channels is
// expected to keep them apart.
func (b *Block) Overlaps() [][2]int {
	regions := b.Regions()

	var pairs [][2]int

	for i := range regions {
		for j := i + 1; j < len(regions); j++ {
			if regions[i].Overlaps(regions[j]) {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}

	return pairs
}
