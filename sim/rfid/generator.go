package rfid

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
)

// Generator creates tags at a configured interval, up to MaxTags.
type Generator struct {
	MaxTags  int
	Created  int
	Interval GenerationInterval
	Lifetime float64

	epcPrefix []byte
	tidPrefix []byte
	epcBytes  int
	tidBytes  int
	rng       *rand.Rand
}

// NewGenerator prepares a generator from the tag parameters. rng drives the
// exponential intervals.
func NewGenerator(p Params, rng *rand.Rand) (*Generator, error) {
	epc, err := hex.DecodeString(p.Tag.EPCPrefix)
	if err != nil {
		return nil, fmt.Errorf("tag.epc_prefix: %w", err)
	}
	tid, err := hex.DecodeString(p.Tag.TIDPrefix)
	if err != nil {
		return nil, fmt.Errorf("tag.tid_prefix: %w", err)
	}
	return &Generator{
		MaxTags:   p.NumTags,
		Interval:  p.Tag.GenerationInterval,
		Lifetime:  p.Lifetime(),
		epcPrefix: epc,
		tidPrefix: tid,
		epcBytes:  p.Tag.EPCBitLen / 8,
		tidBytes:  2 * p.TIDWordSize,
		rng:       rng,
	}, nil
}

// Exhausted reports whether every tag has been created.
func (g *Generator) Exhausted() bool {
	return g.Created >= g.MaxTags
}

// NextInterval draws the delay until the next tag.
func (g *Generator) NextInterval() float64 {
	if g.Interval.Kind == IntervalExponential {
		return g.rng.ExpFloat64() * g.Interval.Value
	}
	return g.Interval.Value
}

// NextIdentity returns the index, EPC and TID of the next tag and counts it
// as created.
func (g *Generator) NextIdentity() (index int, epc, tid []byte) {
	index = g.Created
	g.Created++
	return index, identity(g.epcPrefix, g.epcBytes, index), identity(g.tidPrefix, g.tidBytes, index)
}

// identity fills size bytes with prefix, zero padding and the index in the
// low bytes. The prefix is truncated when it does not fit.
func identity(prefix []byte, size, index int) []byte {
	out := make([]byte, size)
	copy(out, prefix)
	var serial [4]byte
	binary.BigEndian.PutUint32(serial[:], uint32(index))
	tail := min(size-min(len(prefix), size), len(serial))
	copy(out[size-tail:], serial[len(serial)-tail:])
	return out
}
