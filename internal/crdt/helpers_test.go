package crdt

import (
	"time"

	"github.com/iudanet/ledgersync/internal/hlc"
)

// frozenClock создает часы узла с остановленным физическим временем
func frozenClock(nodeID string, ms int64) *hlc.Clock {
	return hlc.NewClockWithNodeID(nodeID, hlc.WithWallClock(func() time.Time {
		return time.UnixMilli(ms)
	}))
}

func stamp(physical int64, logical uint32, node string) hlc.Timestamp {
	return hlc.Timestamp{PhysicalTimeMs: physical, LogicalCounter: logical, NodeID: node}
}

func reg(v Value, physical int64, logical uint32, node string) Register {
	return NewRegister(v, stamp(physical, logical, node))
}
