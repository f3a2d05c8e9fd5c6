package sync

// State стадия сессии синхронизации
type State int

const (
	StateIdle State = iota
	StateHandshake
	StateExchange
	StateMerge
	StateAck
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateExchange:
		return "exchange"
	case StateMerge:
		return "merge"
	case StateAck:
		return "ack"
	default:
		return "idle"
	}
}
