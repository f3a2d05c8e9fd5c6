package node

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/internal/storage/sqlite"
)

// Status сводка по узлу для команды status
type Status struct {
	NodeID     string         `json:"node_id"`
	Clock      hlc.Timestamp  `json:"clock"`       // Clock последняя выданная метка
	LastChange hlc.Timestamp  `json:"last_change"` // LastChange последняя локальная запись
	Tables     []TableStatus  `json:"tables"`
	Peers      []PeerStatus   `json:"peers"`
	Database   *sqlite.Health `json:"database"`
	Graveyard  int            `json:"graveyard"` // Graveyard количество удаленных GC записей
	Sealed     bool           `json:"sealed"`    // Sealed трафик между узлами подписан и зашифрован
}

// TableStatus количество записей таблицы
type TableStatus struct {
	Name    string `json:"name"`
	Live    int    `json:"live"`
	Deleted int    `json:"deleted"`
}

// PeerStatus прогресс синхронизации с одним узлом
type PeerStatus struct {
	NodeID string        `json:"node_id"`
	Cursor hlc.Timestamp `json:"cursor"` // Cursor до какой метки узла мы все забрали
	Ack    hlc.Timestamp `json:"ack"`    // Ack до какой нашей метки узел подтвердил
}

// Status collects counters from both stores.
func (n *Node) Status(ctx context.Context) (*Status, error) {
	last, err := n.svc.LastChange(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last change: %w", err)
	}

	st := &Status{
		NodeID:     n.NodeID(),
		Clock:      n.svc.Clock().Last(),
		LastChange: last,
		Sealed:     n.Sealed(),
	}

	for _, name := range n.svc.Registry().Names() {
		live, err := n.svc.Count(ctx, name, storage.Query{})
		if err != nil {
			return nil, err
		}
		all, err := n.svc.Count(ctx, name, storage.Query{IncludeDeleted: true})
		if err != nil {
			return nil, err
		}
		st.Tables = append(st.Tables, TableStatus{Name: name, Live: live, Deleted: all - live})
	}

	acks, err := n.state.Acks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read acks: %w", err)
	}
	for _, peer := range slices.Sorted(maps.Keys(acks)) {
		cursor, err := n.state.Cursor(ctx, peer)
		if err != nil {
			return nil, fmt.Errorf("failed to read cursor of %s: %w", peer, err)
		}
		st.Peers = append(st.Peers, PeerStatus{NodeID: peer, Cursor: cursor, Ack: acks[peer]})
	}

	if st.Graveyard, err = n.state.GraveyardSize(ctx); err != nil {
		return nil, fmt.Errorf("failed to read graveyard: %w", err)
	}
	if st.Database, err = n.store.Health(ctx); err != nil {
		return nil, fmt.Errorf("failed to check database: %w", err)
	}
	for _, w := range st.Database.Warnings() {
		n.logger.Warn("Database health", "warning", w)
	}
	return st, nil
}
