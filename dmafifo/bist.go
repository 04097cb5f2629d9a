package dmafifo

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dmafifo/fifocore"
	"github.com/sarchlab/dmafifo/hooking"
)

// ErrBISTFailed matches every BISTError with errors.Is.
var ErrBISTFailed = errors.New("dmafifo: BIST failed")

// BISTError reports a channel that failed its self-test. Legacy self-tests
// only report pass or fail, so their Code is the raw nonzero status.
type BISTError struct {
	Channel  int
	Code     uint32
	Extended bool
}

func (e *BISTError) Error() string {
	if e.Extended {
		return fmt.Sprintf("dmafifo: BIST failed on channel %d! (code: %d)",
			e.Channel, e.Code)
	}

	return fmt.Sprintf("dmafifo: BIST failed on channel %d!", e.Channel)
}

// Is makes errors.Is(err, ErrBISTFailed) true for any BISTError.
func (e *BISTError) Is(target error) bool {
	return target == ErrBISTFailed
}

func (b *Block) runBIST(ch int, core fifocore.Core) error {
	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosBISTStart,
		Item:   ch,
	})

	result := BISTResult{
		Channel:  ch,
		Extended: core.ExtBISTSupported(),
	}

	code, err := core.RunBIST()
	if err != nil {
		return fmt.Errorf("dmafifo: running BIST on channel %d: %w", ch, err)
	}

	result.Code = code

	if result.Extended && result.Passed() {
		result.Throughput, err = core.BISTThroughput()
		if err != nil {
			return fmt.Errorf("dmafifo: reading BIST throughput of channel %d: %w",
				ch, err)
		}
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosBISTDone,
		Item:   ch,
		Detail: result,
	})

	if !result.Passed() {
		return &BISTError{
			Channel:  ch,
			Code:     result.Code,
			Extended: result.Extended,
		}
	}

	return nil
}
