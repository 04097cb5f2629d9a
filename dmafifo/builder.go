package dmafifo

import (
	"fmt"
	"math"

	"github.com/sarchlab/dmafifo/fifocore"
	"github.com/sarchlab/dmafifo/hooking"
	"github.com/sarchlab/dmafifo/proptree"
	"github.com/sarchlab/dmafifo/regaccess"
)

// DefaultSize is the region size every channel gets at bring-up.
const DefaultSize = 32 * 1024 * 1024

// Register windows of the FIFO cores inside a channel's register space.
const (
	UserSRBase = 128 * 4
	UserRBBase = 0
)

// A Builder brings up DMA FIFO blocks.
type Builder struct {
	transport   regaccess.Transport
	tree        *proptree.Tree
	numChannels int
	coreMaker   fifocore.Maker
	defaultSize uint32
	argRoot     string
	hooks       []hooking.Hook
}

// MakeBuilder returns a Builder for a single-channel block with the
// default region size and register-driven cores.
func MakeBuilder() Builder {
	return Builder{
		numChannels: 1,
		coreMaker:   fifocore.Make,
		defaultSize: DefaultSize,
	}
}

// WithTransport sets the register transport shared by all channels.
func (b Builder) WithTransport(t regaccess.Transport) Builder {
	b.transport = t
	return b
}

// WithTree sets the configuration tree that receives the channel
// arguments.
func (b Builder) WithTree(tree *proptree.Tree) Builder {
	b.tree = tree
	return b
}

// WithNumChannels sets the number of channels, which is the number of
// input ports of the block.
func (b Builder) WithNumChannels(n int) Builder {
	b.numChannels = n
	return b
}

// WithCoreMaker sets how channel cores are created.
func (b Builder) WithCoreMaker(maker fifocore.Maker) Builder {
	b.coreMaker = maker
	return b
}

// WithDefaultSize sets the region size given to each channel at bring-up.
// Channel i starts at i times this size.
func (b Builder) WithDefaultSize(size uint32) Builder {
	b.defaultSize = size
	return b
}

// WithArgRoot sets the tree path under which the per-channel arguments
// are created. It defaults to /blocks/<name>/args.
func (b Builder) WithArgRoot(root string) Builder {
	b.argRoot = root
	return b
}

// WithHook registers a hook before bring-up starts, so that it sees the
// self-tests.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

func (b Builder) mustBeComplete() {
	if b.transport == nil {
		panic("dmafifo: transport is not set")
	}

	if b.tree == nil {
		panic("dmafifo: tree is not set")
	}

	if b.coreMaker == nil {
		panic("dmafifo: core maker is not set")
	}

	if b.numChannels <= 0 {
		panic("dmafifo: a block needs at least one channel")
	}
}

// Build creates the block and brings every channel up, one after another.
// If any channel fails, including its self-test, no block is returned and
// the arguments of the channels that did come up are removed from the tree.
func (b Builder) Build(name string) (*Block, error) {
	b.mustBeComplete()

	argRoot := b.argRoot
	if argRoot == "" {
		argRoot = proptree.Join("blocks", name, "args")
	}

	blk := &Block{
		name:    name,
		tree:    b.tree,
		argRoot: argRoot,
	}

	for _, h := range b.hooks {
		blk.AcceptHook(h)
	}

	for i := 0; i < b.numChannels; i++ {
		err := b.bringUpChannel(blk, i)
		if err != nil {
			blk.unbindArgs()
			return nil, err
		}
	}

	return blk, nil
}

func (b Builder) bringUpChannel(blk *Block, ch int) error {
	region, err := defaultRegion(ch, b.defaultSize)
	if err != nil {
		return err
	}

	c := &channel{
		iface:    regaccess.ForChannel(b.transport, ch),
		baseAddr: region.BaseAddr,
		depth:    region.Depth,
	}

	c.core, err = b.coreMaker(c.iface, UserSRBase, UserRBBase)
	if err != nil {
		return fmt.Errorf("dmafifo: creating core for channel %d: %w", ch, err)
	}

	blk.channels = append(blk.channels, c)

	err = c.core.Resize(c.baseAddr, c.depth)
	if err != nil {
		return fmt.Errorf("dmafifo: applying default region to channel %d: %w",
			ch, err)
	}

	err = blk.runBIST(ch, c.core)
	if err != nil {
		return err
	}

	return blk.bindArgs(ch)
}

func defaultRegion(ch int, size uint32) (Region, error) {
	base := uint64(ch) * uint64(size)
	if base > math.MaxUint32 {
		return Region{}, fmt.Errorf(
			"dmafifo: default region of channel %d starts past 4 GiB", ch)
	}

	return Region{BaseAddr: uint32(base), Depth: size}, nil
}
