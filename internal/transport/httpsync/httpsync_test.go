package httpsync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/crypto"
	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/replica"
	"github.com/iudanet/ledgersync/internal/schema"
	"github.com/iudanet/ledgersync/internal/storage/boltdb"
	"github.com/iudanet/ledgersync/internal/storage/sqlite"
	"github.com/iudanet/ledgersync/internal/sync"
	"github.com/iudanet/ledgersync/pkg/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testKeys фиксированные ключи вместо дорогого Argon2id
func testKeys(seed byte) *crypto.ClusterKeys {
	return &crypto.ClusterKeys{
		TokenKey: bytes.Repeat([]byte{seed}, 32),
		SealKey:  bytes.Repeat([]byte{seed + 1}, 32),
	}
}

type testNode struct {
	svc       *replica.Service
	session   *sync.Session
	responder *sync.Responder
}

func newTestNode(t *testing.T, nodeID string) *testNode {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	clock := hlc.NewClockWithNodeID(nodeID)
	store, err := sqlite.New(ctx, filepath.Join(dir, "ledger.db"), clock)
	require.NoError(t, err)
	state, err := boltdb.New(ctx, filepath.Join(dir, "node.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		state.Close()
	})

	logger := discardLogger()
	svc := replica.NewService(store, state, schema.Default(), clock, logger)
	return &testNode{
		svc:       svc,
		session:   sync.NewSession(svc, state, logger),
		responder: sync.NewResponder(svc, state, logger),
	}
}

// serve поднимает HTTP сервер узла
func serve(t *testing.T, n *testNode, keys *crypto.ClusterKeys) *httptest.Server {
	t.Helper()
	srv, err := NewServer(n.responder, n.svc.NodeID(), keys, discardLogger())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_SessionConverges(t *testing.T) {
	tests := []struct {
		name string
		keys *crypto.ClusterKeys
	}{
		{name: "sealed and authenticated", keys: testKeys(7)},
		{name: "open", keys: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			a := newTestNode(t, "A")
			b := newTestNode(t, "B")
			ts := serve(t, b, tt.keys)

			_, err := a.svc.CreateWithID(ctx, schema.TableInvoices, "INV-1", map[string]crdt.Value{
				"number": crdt.String("2024-001"),
				"amount": crdt.Number(100),
			})
			require.NoError(t, err)
			_, err = b.svc.CreateWithID(ctx, schema.TableCustomers, "C-1", map[string]crdt.Value{
				"name": crdt.String("Müller GmbH"),
			})
			require.NoError(t, err)

			client, err := NewClient(ts.URL, "A", tt.keys, 5*time.Second)
			require.NoError(t, err)

			res, err := a.session.Run(ctx, client)
			require.NoError(t, err)
			assert.Equal(t, "B", res.PeerID)
			assert.Equal(t, 1, res.Pushed)
			assert.Equal(t, 1, res.Merged)

			for _, key := range []struct{ table, id string }{
				{schema.TableInvoices, "INV-1"},
				{schema.TableCustomers, "C-1"},
			} {
				onA, err := a.svc.Get(ctx, key.table, key.id)
				require.NoError(t, err)
				onB, err := b.svc.Get(ctx, key.table, key.id)
				require.NoError(t, err)

				da, err := crdt.Digest(onA)
				require.NoError(t, err)
				db, err := crdt.Digest(onB)
				require.NoError(t, err)
				assert.Equal(t, da, db)
			}
		})
	}
}

func TestHTTP_Unauthorized(t *testing.T) {
	ctx := context.Background()
	b := newTestNode(t, "B")
	ts := serve(t, b, testKeys(7))

	tests := []struct {
		name   string
		keys   *crypto.ClusterKeys
		nodeID string
		hello  string
	}{
		{name: "no credentials", keys: nil, nodeID: "A", hello: "A"},
		{name: "other cluster", keys: testKeys(9), nodeID: "A", hello: "A"},
		{name: "node id differs from token", keys: testKeys(7), nodeID: "A", hello: "C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(ts.URL, tt.nodeID, tt.keys, 5*time.Second)
			require.NoError(t, err)

			_, err = client.Handshake(ctx, api.Hello{
				ProtocolVersion: api.ProtocolVersion,
				NodeID:          tt.hello,
			})
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestHTTP_ProtocolErrorsCrossTheWire(t *testing.T) {
	ctx := context.Background()
	b := newTestNode(t, "B")
	ts := serve(t, b, testKeys(7))

	client, err := NewClient(ts.URL, "A", testKeys(7), 5*time.Second)
	require.NoError(t, err)

	_, err = client.Handshake(ctx, api.Hello{ProtocolVersion: 99, NodeID: "A"})
	require.ErrorIs(t, err, sync.ErrSyncProtocol)
	var perr *sync.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, sync.StateHandshake, perr.Stage)
	assert.Contains(t, perr.Reason, "400")

	_, err = client.Push(ctx, api.PushRequest{
		NodeID:   "A",
		Entities: []api.EntityEnvelope{{Table: "Bad Table"}},
	})
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, sync.StateExchange, perr.Stage)
}

func TestServer_RejectsUnsealedBody(t *testing.T) {
	b := newTestNode(t, "B")
	keys := testKeys(7)
	ts := serve(t, b, keys)

	token, err := IssueToken(keys.TokenKey, "A", time.Minute)
	require.NoError(t, err)

	body, err := json.Marshal(api.Hello{ProtocolVersion: api.ProtocolVersion, NodeID: "A"})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+PathHello, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", ContentTypeJSON)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "bad_request", errResp.Error)
	assert.Contains(t, errResp.Message, "sealed body required")
}

func TestServer_MethodNotAllowed(t *testing.T) {
	b := newTestNode(t, "B")
	ts := serve(t, b, nil)

	resp, err := http.Get(ts.URL + PathPull)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestClient_Health(t *testing.T) {
	b := newTestNode(t, "B")
	ts := serve(t, b, testKeys(7))

	// Health не требует токена
	client, err := NewClient(ts.URL, "A", nil, 5*time.Second)
	require.NoError(t, err)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "B", health.NodeID)
}

func TestDialer(t *testing.T) {
	ctx := context.Background()
	a := newTestNode(t, "A")
	b := newTestNode(t, "B")
	ts := serve(t, b, testKeys(7))

	dial := Dialer("A", testKeys(7), 5*time.Second)
	syncer := sync.NewSyncer(a.session, nil, dial, sync.SyncerConfig{}, discardLogger())
	syncer.AddPeer(strings.TrimPrefix(ts.URL, "http://"))

	results, failures := syncer.SyncOnce(ctx)
	assert.Empty(t, failures)
	require.Len(t, results, 1)
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"10.0.0.2:8443", "http://10.0.0.2:8443"},
		{"http://10.0.0.2:8443/", "http://10.0.0.2:8443"},
		{"https://ledger.example.com", "https://ledger.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseURL(tt.addr))
	}
}

func TestStatusError(t *testing.T) {
	body := []byte(`{"error":"conflict","message":"duplicate key"}`)

	err := statusError(sync.StateExchange, http.StatusConflict, body)
	require.ErrorIs(t, err, sync.ErrSyncProtocol)
	assert.Contains(t, err.Error(), "conflict: duplicate key")

	err = statusError(sync.StateAck, http.StatusForbidden, body)
	require.ErrorIs(t, err, ErrUnauthorized)

	err = statusError(sync.StateAck, http.StatusBadGateway, []byte("upstream down\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, sync.ErrSyncProtocol)
	assert.Equal(t, "server error (502): upstream down", err.Error())
}
