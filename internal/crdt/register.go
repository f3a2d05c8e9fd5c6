package crdt

import (
	"bytes"
	"strings"

	"github.com/iudanet/ledgersync/internal/hlc"
)

// Register is a last-writer-wins register holding one field of an entity.
// The zero Register means "not yet written" and loses to any written one.
type Register struct {
	Value     Value         `json:"value"`
	Timestamp hlc.Timestamp `json:"timestamp"`
	NodeID    string        `json:"node_id"`
}

// NewRegister creates a register written at ts by ts.NodeID.
func NewRegister(v Value, ts hlc.Timestamp) Register {
	return Register{Value: v, Timestamp: ts, NodeID: ts.NodeID}
}

// Set produces a new register stamped with clock.Now().
func Set(clock *hlc.Clock, v Value) Register {
	return NewRegister(v, clock.Now())
}

// IsZero reports whether the register was never written.
func (r Register) IsZero() bool {
	return r.Timestamp.IsZero()
}

// Compare orders registers by HLC timestamp, then writer node id.
// A full tie (same stamp, same writer, different payload) can only come
// from corrupted input; it falls back to the canonical value encoding so
// that merge stays commutative even then.
func (r Register) Compare(other Register) int {
	if c := r.Timestamp.Compare(other.Timestamp); c != 0 {
		return c
	}
	if c := strings.Compare(r.NodeID, other.NodeID); c != 0 {
		return c
	}
	a, _ := r.Value.MarshalJSON()
	b, _ := other.Value.MarshalJSON()
	return bytes.Compare(a, b)
}

// IsNewerThan сравнивает два регистра по правилу LWW:
// 1. Сначала сравнивается HLC метка (больший выигрывает)
// 2. При равных метках сравнивается NodeID (лексикографически)
func (r Register) IsNewerThan(other Register) bool {
	return r.Compare(other) > 0
}

// Merge returns the winning register. It is commutative, associative and
// idempotent.
func Merge(a, b Register) Register {
	if b.IsNewerThan(a) {
		return b
	}
	return a
}
