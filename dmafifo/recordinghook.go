package dmafifo

import (
	"sync"

	"github.com/sarchlab/dmafifo/datarecording"
	"github.com/sarchlab/dmafifo/hooking"
	"github.com/sarchlab/dmafifo/idgen"
)

// Tables written by a RecordingHook.
const (
	BISTTable   = "dmafifo_bist"
	ResizeTable = "dmafifo_resize"
)

type bistEntry struct {
	ID             string
	Block          string
	Channel        int
	Extended       bool
	Code           uint32
	ThroughputMBps float64
	Passed         bool
}

type resizeEntry struct {
	ID       string
	Block    string
	Channel  int
	OldBase  uint32
	OldDepth uint32
	NewBase  uint32
	NewDepth uint32
	Error    string
}

// RecordingHook stores self-test results and resize events in a data
// recorder.
type RecordingHook struct {
	recorder datarecording.DataRecorder
	ids      idgen.Generator

	mu  sync.Mutex
	err error
}

// NewRecordingHook creates the hook's tables in recorder.
func NewRecordingHook(
	recorder datarecording.DataRecorder,
	ids idgen.Generator,
) (*RecordingHook, error) {
	err := recorder.CreateTable(BISTTable, bistEntry{})
	if err != nil {
		return nil, err
	}

	err = recorder.CreateTable(ResizeTable, resizeEntry{})
	if err != nil {
		return nil, err
	}

	return &RecordingHook{recorder: recorder, ids: ids}, nil
}

// Err returns the first error the hook ran into while recording.
func (h *RecordingHook) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.err
}

func (h *RecordingHook) keepErr(err error) {
	if err == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err == nil {
		h.err = err
	}
}

// Func records the event.
func (h *RecordingHook) Func(ctx hooking.HookCtx) {
	blockName := ""
	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		blockName = named.Name()
	}

	switch ctx.Pos {
	case HookPosBISTDone:
		r := ctx.Detail.(BISTResult)
		h.keepErr(h.recorder.InsertData(BISTTable, bistEntry{
			ID:             h.ids.Generate(),
			Block:          blockName,
			Channel:        r.Channel,
			Extended:       r.Extended,
			Code:           r.Code,
			ThroughputMBps: r.Throughput / 1e6,
			Passed:         r.Passed(),
		}))
	case HookPosResize:
		e := ctx.Detail.(ResizeEvent)
		entry := resizeEntry{
			ID:       h.ids.Generate(),
			Block:    blockName,
			Channel:  e.Channel,
			OldBase:  e.Old.BaseAddr,
			OldDepth: e.Old.Depth,
			NewBase:  e.New.BaseAddr,
			NewDepth: e.New.Depth,
		}

		if e.Err != nil {
			entry.Error = e.Err.Error()
		}

		h.keepErr(h.recorder.InsertData(ResizeTable, entry))
	}
}
