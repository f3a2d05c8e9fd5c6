package hlc

import (
	"fmt"
	"strconv"
	"strings"
)

// Timestamp представляет метку гибридных логических часов (HLC).
// Порядок: сначала PhysicalTimeMs, затем LogicalCounter, затем NodeID
// (лексикографически), так что все узлы согласны о строгом порядке даже при
// совпадении физического времени.
type Timestamp struct {
	PhysicalTimeMs int64  `json:"physical_time_ms"` // PhysicalTimeMs физическое время в миллисекундах (Unix)
	LogicalCounter uint32 `json:"logical_counter"`  // LogicalCounter логический счетчик внутри одной миллисекунды
	NodeID         string `json:"node_id"`          // NodeID узел, выпустивший метку
}

// Compare сравнивает две метки.
// Возвращает -1 если t < other, 0 если равны, 1 если t > other.
func (t Timestamp) Compare(other Timestamp) int {
	switch {
	case t.PhysicalTimeMs < other.PhysicalTimeMs:
		return -1
	case t.PhysicalTimeMs > other.PhysicalTimeMs:
		return 1
	case t.LogicalCounter < other.LogicalCounter:
		return -1
	case t.LogicalCounter > other.LogicalCounter:
		return 1
	}
	return strings.Compare(t.NodeID, other.NodeID)
}

// Before reports whether t sorts strictly before other.
func (t Timestamp) Before(other Timestamp) bool {
	return t.Compare(other) < 0
}

// After reports whether t sorts strictly after other.
func (t Timestamp) After(other Timestamp) bool {
	return t.Compare(other) > 0
}

// IsZero reports whether the timestamp was never assigned.
func (t Timestamp) IsZero() bool {
	return t.PhysicalTimeMs == 0 && t.LogicalCounter == 0 && t.NodeID == ""
}

// Max returns the greater of two timestamps.
func Max(a, b Timestamp) Timestamp {
	if a.Compare(b) >= 0 {
		return a
	}
	return b
}

// Min returns the lesser of two timestamps.
func Min(a, b Timestamp) Timestamp {
	if a.Compare(b) <= 0 {
		return a
	}
	return b
}

// String форматирует метку как "physical:logical:node".
func (t Timestamp) String() string {
	return fmt.Sprintf("%d:%d:%s", t.PhysicalTimeMs, t.LogicalCounter, t.NodeID)
}

// ParseTimestamp разбирает строку в формате String.
func ParseTimestamp(s string) (Timestamp, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: expected physical:logical:node", s)
	}

	physical, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid physical time in %q: %w", s, err)
	}

	logical, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid logical counter in %q: %w", s, err)
	}

	return Timestamp{
		PhysicalTimeMs: physical,
		LogicalCounter: uint32(logical),
		NodeID:         parts[2],
	}, nil
}
