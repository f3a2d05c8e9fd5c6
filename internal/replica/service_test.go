package replica

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/ledgersync/internal/crdt"
	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/merge"
	"github.com/iudanet/ledgersync/internal/models"
	"github.com/iudanet/ledgersync/internal/schema"
	"github.com/iudanet/ledgersync/internal/storage"
	"github.com/iudanet/ledgersync/internal/storage/boltdb"
	"github.com/iudanet/ledgersync/internal/storage/sqlite"
)

var _ models.Writer = (*Service)(nil)

// newTestService поднимает узел на временных файлах
func newTestService(t *testing.T, nodeID string) *Service {
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

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, state, schema.Default(), clock, logger)
}

func TestService_CreateFillsDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	e, err := s.Create(ctx, schema.TableInvoices, map[string]crdt.Value{
		"number": crdt.String("2024-001"),
		"amount": crdt.Number(100),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "A", e.NodeID)
	assert.Equal(t, schema.Invoices.Version, e.SchemaVersion)
	status, _ := e.Value("status").AsString()
	assert.Equal(t, "draft", status)
	for _, name := range e.FieldNames() {
		r, _ := e.Register(name)
		assert.Equal(t, e.CreatedAt, r.Timestamp)
	}
	assert.Equal(t, e.CreatedAt, e.IsDeleted.Timestamp)

	stored, err := s.Get(ctx, schema.TableInvoices, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, stored)
}

func TestService_CreateRejects(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	tests := []struct {
		name    string
		table   string
		fields  map[string]crdt.Value
		wantErr error
	}{
		{name: "unknown table", table: "ledgers", wantErr: schema.ErrUnknownTable},
		{name: "unknown field", table: schema.TableCustomers, fields: map[string]crdt.Value{"colour": crdt.String("red")}, wantErr: schema.ErrUnknownField},
		{name: "wrong kind", table: schema.TableCustomers, fields: map[string]crdt.Value{"name": crdt.Number(1)}, wantErr: crdt.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.table, tt.fields)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := s.CreateWithID(ctx, schema.TableCustomers, "C-1", nil)
	require.NoError(t, err)
	_, err = s.CreateWithID(ctx, schema.TableCustomers, "C-1", nil)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestService_MutateRestampsOneRegister(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	e, err := s.CreateWithID(ctx, schema.TableCustomers, "C-1", map[string]crdt.Value{
		"name":  crdt.String("Acme"),
		"email": crdt.String("old@acme.test"),
	})
	require.NoError(t, err)

	updated, err := s.Mutate(ctx, schema.TableCustomers, e, "email", crdt.String("new@acme.test"))
	require.NoError(t, err)

	email, _ := updated.Register("email")
	name, _ := updated.Register("name")
	assert.True(t, email.Timestamp.After(e.CreatedAt))
	assert.Equal(t, e.CreatedAt, name.Timestamp)
	assert.Equal(t, email.Timestamp, updated.UpdatedAt)

	_, err = s.Mutate(ctx, schema.TableCustomers, e, "email", crdt.Bool(true))
	assert.ErrorIs(t, err, crdt.ErrValidation)

	missing := e.Clone()
	missing.ID = "C-404"
	_, err = s.Mutate(ctx, schema.TableCustomers, missing, "email", crdt.String("x"))
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
}

func TestService_MutateUsesStoredVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	stale, err := s.CreateWithID(ctx, schema.TableCustomers, "C-1", map[string]crdt.Value{"name": crdt.String("Acme")})
	require.NoError(t, err)

	_, err = s.Mutate(ctx, schema.TableCustomers, stale, "email", crdt.String("a@acme.test"))
	require.NoError(t, err)
	// stale не содержит email; вторая запись не должна его потерять
	got, err := s.Mutate(ctx, schema.TableCustomers, stale, "country", crdt.String("DE"))
	require.NoError(t, err)

	email, _ := got.Value("email").AsString()
	assert.Equal(t, "a@acme.test", email)
}

func TestService_DeleteRestore(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	e, err := s.Create(ctx, schema.TableEmployees, map[string]crdt.Value{"name": crdt.String("Ann")})
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, schema.TableEmployees, e)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted())

	n, err := s.Count(ctx, schema.TableEmployees, storage.Query{})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = s.Count(ctx, schema.TableEmployees, storage.Query{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Mutate(ctx, schema.TableEmployees, e, "salary", crdt.Number(1))
	assert.ErrorIs(t, err, ErrDeleted)

	restored, err := s.Restore(ctx, schema.TableEmployees, e)
	require.NoError(t, err)
	assert.False(t, restored.Deleted())
	assert.True(t, restored.IsDeleted.Timestamp.After(deleted.IsDeleted.Timestamp))
}

func TestService_ApplyOutcomes(t *testing.T) {
	ctx := context.Background()
	a := newTestService(t, "A")
	b := newTestService(t, "B")

	orig, err := a.CreateWithID(ctx, schema.TableInvoices, "INV-1", map[string]crdt.Value{"amount": crdt.Number(100)})
	require.NoError(t, err)

	res, err := b.Apply(ctx, schema.TableInvoices, orig)
	require.NoError(t, err)
	assert.Equal(t, merge.OutcomeInserted, res.Outcome)

	res, err = b.Apply(ctx, schema.TableInvoices, orig)
	require.NoError(t, err)
	assert.Equal(t, merge.OutcomeUnchanged, res.Outcome)

	before, err := b.LastChange(ctx)
	require.NoError(t, err)

	onB, err := b.Mutate(ctx, schema.TableInvoices, orig, "status", crdt.String("paid"))
	require.NoError(t, err)

	res, err = a.Apply(ctx, schema.TableInvoices, onB)
	require.NoError(t, err)
	assert.Equal(t, merge.OutcomeUpdated, res.Outcome)

	got, err := a.Get(ctx, schema.TableInvoices, "INV-1")
	require.NoError(t, err)
	status, _ := got.Value("status").AsString()
	assert.Equal(t, "paid", status)

	// A теперь пишет новее всего, что видел от B
	next, err := a.Mutate(ctx, schema.TableInvoices, got, "note", crdt.String("thanks"))
	require.NoError(t, err)
	assert.True(t, next.UpdatedAt.After(onB.UpdatedAt))

	after, err := b.LastChange(ctx)
	require.NoError(t, err)
	assert.True(t, after.After(before))
}

func TestService_ApplyDiscardsBuried(t *testing.T) {
	ctx := context.Background()
	a := newTestService(t, "A")
	b := newTestService(t, "B")

	e, err := a.CreateWithID(ctx, schema.TableCustomers, "C-1", nil)
	require.NoError(t, err)

	require.NoError(t, b.state.Bury(ctx, []storage.Key{{Table: schema.TableCustomers, ID: "C-1"}}, b.clock.Now()))

	res, err := b.Apply(ctx, schema.TableCustomers, e)
	require.NoError(t, err)
	assert.Equal(t, merge.OutcomeDiscarded, res.Outcome)

	_, err = b.Get(ctx, schema.TableCustomers, "C-1")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)

	_, err = b.CreateWithID(ctx, schema.TableCustomers, "C-1", nil)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestService_ApplyRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	e, err := crdt.NewEntity(hlc.NewClockWithNodeID("B"), "C-1", 1, map[string]crdt.Value{"name": crdt.Bool(true)})
	require.NoError(t, err)

	_, err = s.Apply(ctx, schema.TableCustomers, e)
	assert.ErrorIs(t, err, crdt.ErrValidation)

	_, err = s.Get(ctx, schema.TableCustomers, "C-1")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
}

func TestService_BatchInsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")
	require.NoError(t, s.EnsureIndexes(ctx))

	clock := s.Clock()
	var batch []*crdt.Entity
	for i, status := range []string{"draft", "paid", "paid"} {
		e, err := crdt.NewEntity(clock, "INV-"+string(rune('1'+i)), schema.Invoices.Version, map[string]crdt.Value{
			"status": crdt.String(status),
		})
		require.NoError(t, err)
		batch = append(batch, e)
	}
	require.NoError(t, s.BatchInsert(ctx, schema.TableInvoices, batch))

	var ids []string
	for e, err := range s.Query(ctx, schema.TableInvoices, storage.Where("status.value", storage.OpEq, crdt.String("paid"))) {
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"INV-2", "INV-3"}, ids)

	for _, err := range s.Query(ctx, "ledgers", storage.Query{}) {
		assert.ErrorIs(t, err, schema.ErrUnknownTable)
	}
}

func TestService_BatchInsertRejectsBuried(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	require.NoError(t, s.state.Bury(ctx, []storage.Key{{Table: schema.TableCustomers, ID: "C-2"}}, s.clock.Now()))

	var batch []*crdt.Entity
	for _, id := range []string{"C-1", "C-2"} {
		e, err := crdt.NewEntity(s.clock, id, schema.Customers.Version, map[string]crdt.Value{
			"name": crdt.String("ACME"),
		})
		require.NoError(t, err)
		batch = append(batch, e)
	}

	err := s.BatchInsert(ctx, schema.TableCustomers, batch)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Пачка не записана целиком
	for _, id := range []string{"C-1", "C-2"} {
		_, err := s.Get(ctx, schema.TableCustomers, id)
		assert.ErrorIs(t, err, storage.ErrEntityNotFound, id)
	}
}

func TestService_ReadsRestoreStringKind(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	name := "2024-01-01T00:00:00.000000000Z"
	_, err := s.CreateWithID(ctx, schema.TableCustomers, "C-1", map[string]crdt.Value{
		"name": crdt.String(name),
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, schema.TableCustomers, "C-1")
	require.NoError(t, err)
	assert.Equal(t, crdt.KindString, got.Value("name").Kind())
	assert.Equal(t, name, got.Value("name").String())

	var found int
	for e, err := range s.Query(ctx, schema.TableCustomers, storage.Where("name.value", storage.OpEq, crdt.String(name))) {
		require.NoError(t, err)
		assert.Equal(t, crdt.KindString, e.Value("name").Kind())
		found++
	}
	assert.Equal(t, 1, found)

	_, err = s.Create(ctx, schema.TableEmployees, map[string]crdt.Value{
		"hired_at": crdt.Time(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	assert.ErrorIs(t, err, crdt.ErrValidation)
}

func TestService_Checkpoint(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	_, err := s.Create(ctx, schema.TableCustomers, nil)
	require.NoError(t, err)
	require.NoError(t, s.Checkpoint(ctx))

	saved, err := s.state.ClockCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.clock.Last(), saved)
	assert.WithinDuration(t, time.Now(), time.UnixMilli(saved.PhysicalTimeMs), time.Minute)
}

func TestService_TypedWrappers(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, "A")

	inv, err := models.CreateInvoice(ctx, s, models.InvoiceInput{Number: "7", CustomerID: "C-1", Amount: 12})
	require.NoError(t, err)
	require.NoError(t, inv.SetStatus(ctx, s, models.InvoiceSent))

	stored, err := s.Get(ctx, schema.TableInvoices, inv.ID())
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, models.NewInvoice(stored).Status())
}
