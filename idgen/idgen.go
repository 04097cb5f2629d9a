// Package idgen generates identifiers for recorded events.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator produces unique identifiers.
type Generator interface {
	Generate() string
}

// NewSequential returns a generator whose first ID is "1". IDs are
// reproducible across runs.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewGlobal returns a generator of globally unique IDs, suitable when the
// records of several processes end up in the same database.
func NewGlobal() Generator {
	return globalGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() string {
	return strconv.FormatUint(atomic.AddUint64(&g.next, 1), 10)
}

type globalGenerator struct{}

func (globalGenerator) Generate() string {
	return xid.New().String()
}
