package dmafifo

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/sarchlab/dmafifo/proptree"
)

// Names of the per-channel arguments in the configuration tree.
const (
	ArgBaseAddr = "base_addr"
	ArgDepth    = "depth"
)

// ErrArgOutOfRange is returned when an argument value does not fit in a
// 32-bit register.
var ErrArgOutOfRange = errors.New("dmafifo: argument out of range")

// ArgPath returns the tree path of an argument of channel ch.
func (b *Block) ArgPath(ch int, arg string) string {
	return proptree.Join(b.argRoot, strconv.Itoa(ch), arg, "value")
}

// bindArgs exposes the region of channel ch as two tree properties. Setting
// either one resizes the channel, keeping the other half of the region as
// it is at that moment. Reading them returns the committed region, so
// direct resizes show up too. The initial sets re-apply the current region.
func (b *Block) bindArgs(ch int) error {
	region, err := b.Region(ch)
	if err != nil {
		return err
	}

	bindings := []struct {
		arg     string
		initial uint32
		field   func(r Region) uint32
		update  func(r Region, v uint32) Region
	}{
		{ArgBaseAddr, region.BaseAddr,
			func(r Region) uint32 { return r.BaseAddr },
			func(r Region, v uint32) Region {
				r.BaseAddr = v
				return r
			}},
		{ArgDepth, region.Depth,
			func(r Region) uint32 { return r.Depth },
			func(r Region, v uint32) Region {
				r.Depth = v
				return r
			}},
	}

	for _, binding := range bindings {
		field, update := binding.field, binding.update

		prop, err := proptree.Create[int64](b.tree, b.ArgPath(ch, binding.arg))
		if err != nil {
			return fmt.Errorf("dmafifo: binding %s of channel %d: %w",
				binding.arg, ch, err)
		}

		b.argPaths = append(b.argPaths, prop.Path())

		prop.AddCoercedSubscriber(func(v int64) error {
			return b.resizeArg(ch, v, update)
		})
		prop.SetPublisher(func() (int64, error) {
			r, err := b.Region(ch)
			return int64(field(r)), err
		})

		err = prop.Set(int64(binding.initial))
		if err != nil {
			return fmt.Errorf("dmafifo: initializing %s of channel %d: %w",
				binding.arg, ch, err)
		}
	}

	return nil
}

// resizeArg applies one argument to a channel. The other half of the
// region is read under the lock, so it is always the latest committed one.
func (b *Block) resizeArg(
	ch int,
	v int64,
	update func(r Region, v uint32) Region,
) error {
	if v < 0 || v > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrArgOutOfRange, v)
	}

	if err := b.checkChannel(ch); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.resizeLocked(ch, update(b.channels[ch].region(), uint32(v)))
}

// unbindArgs removes every argument bindArgs created, so that nothing in
// the tree drives a block that failed to come up.
func (b *Block) unbindArgs() {
	for _, p := range b.argPaths {
		_ = b.tree.Remove(p)
	}

	b.argPaths = nil
}
