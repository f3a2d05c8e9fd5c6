package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/pkg/api"
)

// DefaultBatchSize размер пачки по умолчанию
const DefaultBatchSize = 200

// Result contains sync session results
type Result struct {
	PeerID    string `json:"peer_id"`   // узел, с которым прошла синхронизация
	Pushed    int    `json:"pushed"`    // количество отправленных сущностей
	Pulled    int    `json:"pulled"`    // количество полученных сущностей
	Merged    int    `json:"merged"`    // количество вставленных или обновленных локально
	Unchanged int    `json:"unchanged"` // количество полученных версий, уже известных локально
	Discarded int    `json:"discarded"` // количество версий удаленных GC сущностей
	Conflicts int    `json:"conflicts"` // количество разрешённых конфликтов регистров
}

// Session drives one synchronization as the initiator.
// Idle → Handshake → Exchange → Merge → Ack → Idle.
type Session struct {
	replica   Replica
	state     storage.NodeState
	logger    *slog.Logger
	batchSize int

	mu      stdsync.Mutex
	current State
}

// SessionOption настраивает Session
type SessionOption func(*Session)

// WithBatchSize sets the number of entities per push or pull page.
func WithBatchSize(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewSession creates a session bound to the local replica.
func NewSession(replica Replica, state storage.NodeState, logger *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		replica:   replica,
		state:     state,
		logger:    logger,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the stage of the running session, StateIdle between runs.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) enter(st State) {
	s.mu.Lock()
	s.current = st
	s.mu.Unlock()
}

// Run performs a full two-way synchronization with peer:
//  1. Handshake: exchanges Hello and learns the peer id and its cursor for us
//  2. Exchange: pushes local changes since that cursor; the final push
//     makes the peer advance its cursor and ack
//  3. Merge: pulls the peer's changes since our cursor and merges them
//  4. Ack: advances our cursor and acks what was absorbed
//
// Cursors move only after the last batch of a direction is persisted, so an
// interrupted run is repeated safely.
func (s *Session) Run(ctx context.Context, peer Peer) (*Result, error) {
	defer s.enter(StateIdle)

	self := s.replica.NodeID()
	clock := s.replica.Clock()

	// 1. Handshake
	s.enter(StateHandshake)
	reply, err := peer.Handshake(ctx, api.Hello{
		ProtocolVersion: api.ProtocolVersion,
		NodeID:          self,
		Clock:           clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("handshake failed: %w", err)
	}
	if err := checkHello(self, reply); err != nil {
		return nil, err
	}
	clock.Observe(reply.Clock)

	peerID := reply.NodeID
	result := &Result{PeerID: peerID}
	s.logger.Info("Starting synchronization",
		"peer", peerID,
		"peer_cursor", reply.Cursor.String())

	// 2. Exchange: наши изменения
	s.enter(StateExchange)
	if err := s.push(ctx, peer, self, peerID, reply.Cursor, result); err != nil {
		return nil, err
	}

	// 3. Merge: изменения узла
	cursor, err := s.state.Cursor(ctx, peerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor: %w", err)
	}
	upto, err := s.pull(ctx, peer, self, cursor, result)
	if err != nil {
		return nil, err
	}

	// 4. Ack
	s.enter(StateAck)
	if err := s.state.SaveCursor(ctx, peerID, upto); err != nil {
		return nil, fmt.Errorf("failed to save cursor: %w", err)
	}
	if err := peer.Ack(ctx, api.AckRequest{NodeID: self, Upto: upto}); err != nil {
		// Курсор уже сохранен; узел получит подтверждение в следующей сессии
		s.logger.Warn("Failed to send ack", "peer", peerID, "error", err)
	}

	s.logger.Info("Synchronization completed",
		"peer", peerID,
		"pushed", result.Pushed,
		"pulled", result.Pulled,
		"merged", result.Merged,
		"unchanged", result.Unchanged,
		"discarded", result.Discarded,
		"conflicts", result.Conflicts)

	return result, nil
}

// push отправляет журнал изменений после cursor пачками
func (s *Session) push(ctx context.Context, peer Peer, self, peerID string, cursor hlc.Timestamp, result *Result) error {
	for {
		changes, err := s.replica.ChangesSince(ctx, cursor, s.batchSize)
		if err != nil {
			return fmt.Errorf("failed to collect local changes: %w", err)
		}

		final := len(changes) < s.batchSize
		upto := cursor
		if len(changes) > 0 {
			upto = changes[len(changes)-1].Stamp
		}

		resp, err := peer.Push(ctx, api.PushRequest{
			NodeID:   self,
			Entities: envelopes(changes),
			Upto:     upto,
			Final:    final,
		})
		if err != nil {
			return fmt.Errorf("push failed: %w", err)
		}

		result.Pushed += len(changes)
		result.Conflicts += resp.Conflicts
		cursor = upto

		if final {
			if resp.Acked.Before(upto) {
				return protocolError(StateExchange,
					fmt.Sprintf("peer acked %s, pushed up to %s", resp.Acked, upto), nil)
			}
			if !resp.Acked.IsZero() {
				if err := s.state.SaveAck(ctx, peerID, resp.Acked); err != nil {
					return fmt.Errorf("failed to save ack: %w", err)
				}
			}
			s.logger.Debug("Pushed local changes", "peer", peerID, "count", result.Pushed)
			return nil
		}
	}
}

// pull забирает страницы изменений узла и сливает их локально.
// Возвращает метку, до которой все изменения узла приняты.
func (s *Session) pull(ctx context.Context, peer Peer, self string, cursor hlc.Timestamp, result *Result) (hlc.Timestamp, error) {
	for {
		s.enter(StateExchange)
		page, err := peer.Pull(ctx, api.PullRequest{
			NodeID: self,
			After:  cursor,
			Limit:  s.batchSize,
		})
		if err != nil {
			return hlc.Timestamp{}, fmt.Errorf("pull failed: %w", err)
		}
		if page.Upto.Before(cursor) {
			return hlc.Timestamp{}, protocolError(StateExchange,
				fmt.Sprintf("page ends at %s, before cursor %s", page.Upto, cursor), nil)
		}
		if !page.Final && len(page.Entities) == 0 {
			return hlc.Timestamp{}, protocolError(StateExchange, "empty page that is not final", nil)
		}

		s.enter(StateMerge)
		stats, err := applyBatch(ctx, s.replica, StateMerge, page.Entities)
		if err != nil {
			return hlc.Timestamp{}, err
		}

		result.Pulled += len(page.Entities)
		result.Merged += stats.merged
		result.Unchanged += stats.unchanged
		result.Discarded += stats.discarded
		result.Conflicts += stats.conflicts
		cursor = page.Upto

		if page.Final {
			return cursor, nil
		}
	}
}
