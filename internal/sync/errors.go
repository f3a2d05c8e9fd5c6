package sync

import "errors"

// ErrSyncProtocol matches every *ProtocolError
var ErrSyncProtocol = errors.New("sync protocol error")

// ProtocolError describes a peer that broke the protocol: bad handshake,
// malformed batch, a cursor moving backwards.
type ProtocolError struct {
	Err    error
	Reason string
	Stage  State
}

func (e *ProtocolError) Error() string {
	msg := "sync protocol error at " + e.Stage.String() + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrSyncProtocol) true for every ProtocolError.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrSyncProtocol
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolError(stage State, reason string, err error) *ProtocolError {
	return &ProtocolError{Stage: stage, Reason: reason, Err: err}
}
