package dmafifo

import (
	"log"

	"github.com/sarchlab/dmafifo/hooking"
)

// LogHook prints self-test and resize events of a block.
type LogHook struct {
	*log.Logger
}

// NewLogHook returns a LogHook that writes into logger.
func NewLogHook(logger *log.Logger) *LogHook {
	return &LogHook{Logger: logger}
}

// Func writes the event into the logger.
func (h *LogHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case HookPosBISTStart:
		h.Printf("Running BIST for FIFO %d... ", ctx.Item)
	case HookPosBISTDone:
		h.logBIST(ctx.Detail.(BISTResult))
	case HookPosResize:
		h.logResize(ctx.Detail.(ResizeEvent))
	}
}

func (h *LogHook) logBIST(r BISTResult) {
	switch {
	case r.Passed() && r.Extended:
		h.Printf("BIST passed (Throughput: %.0f MB/s)", r.Throughput/1e6)
	case r.Passed():
		h.Printf("BIST passed")
	case r.Extended:
		h.Printf("BIST failed for FIFO %d (code: %d)", r.Channel, r.Code)
	default:
		h.Printf("BIST failed for FIFO %d", r.Channel)
	}
}

func (h *LogHook) logResize(e ResizeEvent) {
	if e.Err != nil {
		h.Printf("FIFO %d: resize to base 0x%08x depth 0x%08x failed: %v",
			e.Channel, e.New.BaseAddr, e.New.Depth, e.Err)
		return
	}

	h.Printf("FIFO %d: base 0x%08x depth 0x%08x -> base 0x%08x depth 0x%08x",
		e.Channel, e.Old.BaseAddr, e.Old.Depth, e.New.BaseAddr, e.New.Depth)
}
