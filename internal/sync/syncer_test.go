package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncer_Peers(t *testing.T) {
	a := newTestNode(t, "A")
	s := NewSyncer(a.session, nil, nil, SyncerConfig{}, discardLogger())

	s.AddPeer("10.0.0.2:8443")
	s.AddPeer("10.0.0.1:8443")
	s.AddPeer("10.0.0.2:8443")
	assert.Equal(t, []string{"10.0.0.1:8443", "10.0.0.2:8443"}, s.Peers())

	s.RemovePeer("10.0.0.2:8443")
	assert.Equal(t, []string{"10.0.0.1:8443"}, s.Peers())
}

func TestSyncer_SyncOnce(t *testing.T) {
	ctx := context.Background()
	a := newTestNode(t, "A")
	b := newTestNode(t, "B")
	c := newTestNode(t, "C")

	a.createInvoice(t, "INV-1", "2024-001", 100)
	b.createInvoice(t, "INV-2", "2024-002", 200)
	c.createInvoice(t, "INV-3", "2024-003", 300)

	errUnreachable := errors.New("no route to host")
	dial := func(addr string) (Peer, error) {
		switch addr {
		case "b":
			return b.responder, nil
		case "c":
			return c.responder, nil
		default:
			return nil, errUnreachable
		}
	}

	s := NewSyncer(a.session, nil, dial, SyncerConfig{Timeout: 10 * time.Second}, discardLogger())
	s.AddPeer("b")
	s.AddPeer("c")
	s.AddPeer("offline")

	results, failures := s.SyncOnce(ctx)

	require.Len(t, results, 2)
	assert.Equal(t, "B", results["b"].PeerID)
	assert.Equal(t, "C", results["c"].PeerID)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures["offline"], errUnreachable)

	// A собрал все три записи
	for _, id := range []string{"INV-1", "INV-2", "INV-3"} {
		a.get(t, id)
	}
	assertConverged(t, []string{"INV-1", "INV-3"}, a, c)
}

func TestSyncer_SyncOnceCancelled(t *testing.T) {
	a := newTestNode(t, "A")
	dial := func(addr string) (Peer, error) {
		t.Fatalf("dial must not be called, got %s", addr)
		return nil, nil
	}

	s := NewSyncer(a.session, nil, dial, SyncerConfig{}, discardLogger())
	s.AddPeer("b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, failures := s.SyncOnce(ctx)
	assert.Empty(t, results)
	assert.ErrorIs(t, failures["b"], context.Canceled)
}

func TestSyncer_RunStopsOnCancel(t *testing.T) {
	a := newTestNode(t, "A")
	b := newTestNode(t, "B")
	b.createInvoice(t, "INV-1", "2024-001", 100)

	dial := func(addr string) (Peer, error) {
		return b.responder, nil
	}
	gc := newTestGC(a)
	s := NewSyncer(a.session, gc, dial, SyncerConfig{
		Interval:   10 * time.Millisecond,
		GCInterval: 10 * time.Millisecond,
	}, discardLogger())
	s.AddPeer("b")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := a.svc.Get(context.Background(), "invoices", "INV-1")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("syncer did not stop")
	}
}
