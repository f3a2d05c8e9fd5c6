package merge

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/schema"
)

func testClock(nodeID string, ms int64) *hlc.Clock {
	return hlc.NewClockWithNodeID(nodeID, hlc.WithWallClock(func() time.Time {
		return time.UnixMilli(ms)
	}))
}

func newTestEngine(clock *hlc.Clock) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(clock, schema.Default(), logger)
}

func newCustomer(t *testing.T, clock *hlc.Clock) *crdt.Entity {
	t.Helper()
	e, err := crdt.NewEntity(clock, "C-1", 1, map[string]crdt.Value{
		"name":  crdt.String("Acme"),
		"email": crdt.String("old@acme.test"),
	})
	require.NoError(t, err)
	return e
}

func TestEngine_Insert(t *testing.T) {
	local := testClock("A", 1000)
	engine := newTestEngine(local)

	remote := newCustomer(t, testClock("B", 50_000))

	res, err := engine.Reconcile(schema.TableCustomers, nil, remote)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, res.Outcome)
	assert.Equal(t, remote.ID, res.Entity.ID)

	// Часы узла обязаны обогнать все увиденные метки
	assert.True(t, local.Now().After(remote.UpdatedAt))
}

func TestEngine_UnchangedOnReplay(t *testing.T) {
	engine := newTestEngine(testClock("A", 1000))
	e := newCustomer(t, testClock("B", 1000))

	res, err := engine.Reconcile(schema.TableCustomers, e, e.Clone())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)
	assert.Equal(t, 0, res.Conflicts)
}

func TestEngine_UpdatedWithConflicts(t *testing.T) {
	engine := newTestEngine(testClock("A", 1000))
	base := newCustomer(t, testClock("A", 1000))

	local := base.Clone()
	require.NoError(t, local.Set(testClock("A", 2000), "email", crdt.String("a@acme.test")))
	remote := base.Clone()
	require.NoError(t, remote.Set(testClock("B", 3000), "email", crdt.String("b@acme.test")))

	res, err := engine.Reconcile(schema.TableCustomers, local, remote)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, 1, res.Conflicts)
	email, _ := res.Entity.Value("email").AsString()
	assert.Equal(t, "b@acme.test", email)
}

func TestEngine_UpgradesOlderSide(t *testing.T) {
	engine := newTestEngine(testClock("A", 1000))

	v1, err := crdt.NewEntity(testClock("A", 1000), "INV-1", 1, map[string]crdt.Value{"amount": crdt.Number(5)})
	require.NoError(t, err)

	v2, err := schema.Invoices.Upgrade(v1)
	require.NoError(t, err)
	require.NoError(t, v2.Set(testClock("B", 2000), "note", crdt.String("from v2 node")))

	for _, pair := range [][2]*crdt.Entity{{v1, v2}, {v2, v1}} {
		res, err := engine.Reconcile(schema.TableInvoices, pair[0], pair[1])
		require.NoError(t, err)
		assert.Equal(t, 2, res.Entity.SchemaVersion)
		note, _ := res.Entity.Value("note").AsString()
		assert.Equal(t, "from v2 node", note)
	}
}

func TestEngine_Rejects(t *testing.T) {
	engine := newTestEngine(testClock("A", 1000))
	good := newCustomer(t, testClock("B", 1000))

	ahead := good.Clone()
	ahead.SchemaVersion = 9

	wrongKind := good.Clone()
	wrongKind.Fields["name"] = crdt.NewRegister(crdt.Number(1), good.CreatedAt)

	otherID := good.Clone()
	otherID.ID = "C-2"

	tests := []struct {
		name    string
		table   string
		local   *crdt.Entity
		remote  *crdt.Entity
		wantErr error
	}{
		{name: "unknown table", table: "ledgers", remote: good, wantErr: schema.ErrUnknownTable},
		{name: "version ahead", table: schema.TableCustomers, remote: ahead, wantErr: schema.ErrVersionAhead},
		{name: "wrong kind", table: schema.TableCustomers, remote: wrongKind, wantErr: crdt.ErrValidation},
		{name: "id mismatch", table: schema.TableCustomers, local: good, remote: otherID, wantErr: crdt.ErrIDMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Reconcile(tt.table, tt.local, tt.remote)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "inserted", OutcomeInserted.String())
	assert.Equal(t, "updated", OutcomeUpdated.String())
	assert.Equal(t, "unchanged", OutcomeUnchanged.String())
	assert.Equal(t, "discarded", OutcomeDiscarded.String())
}
