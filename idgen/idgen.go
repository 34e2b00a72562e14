// Package idgen provides the generators that label generation cycles.
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

// NewSequential returns a generator whose first emitted ID is "1". The IDs
// are deterministic, which keeps recorded runs comparable.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewParallel returns a generator of globally unique, roughly time-ordered
// IDs. Use it when several processes record into the same database.
func NewParallel() Generator {
	return parallelGenerator{}
}

type sequentialGenerator struct {
	next atomic.Uint64
}

func (g *sequentialGenerator) Generate() string {
	return strconv.FormatUint(g.next.Add(1), 10)
}

type parallelGenerator struct{}

func (parallelGenerator) Generate() string {
	return xid.New().String()
}
