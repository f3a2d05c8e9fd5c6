package crdt

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvoice(t *testing.T, clockNode string, ms int64) *Entity {
	t.Helper()
	e, err := NewEntity(frozenClock(clockNode, ms), "INV-1", 1, map[string]Value{
		"amount": Number(100),
	})
	require.NoError(t, err)
	return e
}

func mustMerge(t *testing.T, a, b *Entity) *Entity {
	t.Helper()
	m, err := MergeEntity(a, b)
	require.NoError(t, err)
	return m
}

func digest(t *testing.T, e *Entity) string {
	t.Helper()
	d, err := Digest(e)
	require.NoError(t, err)
	return d
}

func TestNewEntity(t *testing.T) {
	clock := frozenClock("A", 1000)

	e, err := NewEntity(clock, "C-1", 2, map[string]Value{
		"name":  String("Acme"),
		"email": String("ops@acme.test"),
	})
	require.NoError(t, err)

	ts := stamp(1000, 0, "A")
	assert.Equal(t, "C-1", e.ID)
	assert.Equal(t, "A", e.NodeID)
	assert.Equal(t, 2, e.SchemaVersion)
	assert.Equal(t, ts, e.CreatedAt)
	assert.Equal(t, ts, e.UpdatedAt)
	assert.Equal(t, NewRegister(Bool(false), ts), e.IsDeleted)
	assert.Equal(t, []string{"email", "name"}, e.FieldNames())
	for _, name := range e.FieldNames() {
		r, _ := e.Register(name)
		assert.Equal(t, ts, r.Timestamp, "field %s must share the creation stamp", name)
	}
	assert.NoError(t, e.Validate())
}

func TestNewEntity_Invalid(t *testing.T) {
	clock := frozenClock("A", 1000)

	_, err := NewEntity(clock, "", 1, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewEntity(clock, "X-1", 1, map[string]Value{"is_deleted": Bool(true)})
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	_, err = NewEntity(clock, "X-1", 1, map[string]Value{"Bad Name": Null()})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Bad Name", verr.Field)
}

func TestEntity_SetRestampsOneRegister(t *testing.T) {
	clock := frozenClock("A", 1000)
	e, err := NewEntity(clock, "INV-1", 1, map[string]Value{
		"amount": Number(100),
		"status": String("draft"),
	})
	require.NoError(t, err)

	require.NoError(t, e.Set(clock, "status", String("sent")))

	amount, _ := e.Register("amount")
	status, _ := e.Register("status")
	assert.Equal(t, stamp(1000, 0, "A"), amount.Timestamp, "untouched field keeps its stamp")
	assert.Equal(t, stamp(1000, 1, "A"), status.Timestamp)
	assert.Equal(t, status.Timestamp, e.UpdatedAt)
	assert.Equal(t, stamp(1000, 0, "A"), e.CreatedAt)

	assert.ErrorIs(t, e.Set(clock, "id", String("x")), ErrValidation)
}

func TestEntity_DeleteRestore(t *testing.T) {
	clock := frozenClock("A", 1000)
	e := newInvoice(t, "A", 1000)

	e.Delete(clock)
	assert.True(t, e.Deleted())
	assert.Equal(t, e.IsDeleted.Timestamp, e.UpdatedAt)

	e.Restore(clock)
	assert.False(t, e.Deleted())
	assert.NoError(t, e.Validate())
}

func TestMergeEntity_RequiresSameID(t *testing.T) {
	a := newInvoice(t, "A", 1000)
	b := newInvoice(t, "B", 1000)
	b.ID = "INV-2"

	_, err := MergeEntity(a, b)
	assert.ErrorIs(t, err, ErrIDMismatch)
}

func TestMergeEntity_RequiresSameSchemaVersion(t *testing.T) {
	a := newInvoice(t, "A", 1000)
	b := newInvoice(t, "B", 1000)
	b.SchemaVersion = 2

	_, err := MergeEntity(a, b)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

// Узел A создает INV-1 {amount:100}; узел B офлайн ставит status=paid.
// После синхронизации в любую сторону сохраняются оба изменения.
func TestMergeEntity_DisjointFieldEditsNeverLoseData(t *testing.T) {
	clockA := frozenClock("A", 1000)
	clockB := frozenClock("B", 2000)

	onA, err := NewEntity(clockA, "INV-1", 1, map[string]Value{"amount": Number(100)})
	require.NoError(t, err)

	onB := onA.Clone()
	require.NoError(t, onB.Set(clockB, "status", String("paid")))

	ab := mustMerge(t, onA, onB)
	ba := mustMerge(t, onB, onA)

	for _, m := range []*Entity{ab, ba} {
		amount, _ := m.Value("amount").AsNumber()
		status, _ := m.Value("status").AsString()
		assert.Equal(t, float64(100), amount)
		assert.Equal(t, "paid", status)
		assert.Equal(t, stamp(2000, 0, "B"), m.UpdatedAt)
	}
	assert.Equal(t, digest(t, ab), digest(t, ba))
}

// A ставит status=sent в (1000,0,"A"), B ставит status=cancelled в (1000,0,"B").
// Обе реплики сходятся к победителю по node_id, побитово одинаково.
func TestMergeEntity_ConcurrentWriteTieBreak(t *testing.T) {
	base := newInvoice(t, "A", 500)

	onA := base.Clone()
	onA.Fields["status"] = reg(String("sent"), 1000, 0, "A")
	onA.UpdatedAt = stamp(1000, 0, "A")

	onB := base.Clone()
	onB.Fields["status"] = reg(String("cancelled"), 1000, 0, "B")
	onB.UpdatedAt = stamp(1000, 0, "B")

	onAAfterSync := mustMerge(t, onA, onB)
	onBAfterSync := mustMerge(t, onB, onA)

	status, _ := onAAfterSync.Value("status").AsString()
	assert.Equal(t, "cancelled", status)
	assert.Equal(t, digest(t, onAAfterSync), digest(t, onBAfterSync))
	assert.Equal(t, 1, Conflicts(onA, onB))
}

// A удаляет C-1 в t5; B до синхронизации меняет email в t4 < t5.
func TestMergeEntity_DeleteBeatsOlderUpdate(t *testing.T) {
	base, err := NewEntity(frozenClock("A", 1000), "C-1", 1, map[string]Value{
		"email": String("old@acme.test"),
	})
	require.NoError(t, err)

	onA := base.Clone()
	onA.Delete(frozenClock("A", 5000))

	onB := base.Clone()
	require.NoError(t, onB.Set(frozenClock("B", 4000), "email", String("new@acme.test")))

	for _, m := range []*Entity{mustMerge(t, onA, onB), mustMerge(t, onB, onA)} {
		assert.True(t, m.Deleted(), "higher timestamp tombstone wins")
		email, _ := m.Value("email").AsString()
		assert.Equal(t, "new@acme.test", email, "field edits are still merged under the tombstone")
	}
}

func TestMergeEntity_TombstoneOverride(t *testing.T) {
	base := newInvoice(t, "A", 1000)

	deleted := base.Clone()
	deleted.Delete(frozenClock("A", 3000))

	olderAlive := base.Clone()
	olderAlive.IsDeleted = reg(Bool(false), 2000, 0, "B")
	olderAlive.UpdatedAt = stamp(2000, 0, "B")

	newerAlive := base.Clone()
	newerAlive.IsDeleted = reg(Bool(false), 4000, 0, "B")
	newerAlive.UpdatedAt = stamp(4000, 0, "B")

	assert.True(t, mustMerge(t, deleted, olderAlive).Deleted())
	assert.True(t, mustMerge(t, olderAlive, deleted).Deleted())
	assert.False(t, mustMerge(t, deleted, newerAlive).Deleted())
	assert.False(t, mustMerge(t, newerAlive, deleted).Deleted())
}

func TestMergeEntity_AbsentRegisterLoses(t *testing.T) {
	local := newInvoice(t, "A", 1000)
	remote := local.Clone()
	remote.Fields["status"] = reg(String("paid"), 900, 0, "B")

	merged := mustMerge(t, local, remote)
	status, ok := merged.Value("status").AsString()
	assert.True(t, ok)
	assert.Equal(t, "paid", status)
}

func TestMergeEntity_KeepsEarliestCreation(t *testing.T) {
	a := newInvoice(t, "A", 2000)
	b := newInvoice(t, "B", 1000)

	for _, m := range []*Entity{mustMerge(t, a, b), mustMerge(t, b, a)} {
		assert.Equal(t, stamp(1000, 0, "B"), m.CreatedAt)
		assert.Equal(t, "B", m.NodeID)
		assert.Equal(t, stamp(2000, 0, "A"), m.UpdatedAt)
	}
}

func TestMergeEntity_ConvergesUnderAnyOrderAndReplay(t *testing.T) {
	base := newInvoice(t, "A", 1000)

	var versions []*Entity
	for i, node := range []string{"A", "B", "C", "D"} {
		v := base.Clone()
		clock := frozenClock(node, int64(2000+i%2*100))
		require.NoError(t, v.Set(clock, "status", String("status-"+node)))
		require.NoError(t, v.Set(clock, "note_"+string(rune('a'+i)), Number(float64(i))))
		if i == 2 {
			v.Delete(clock)
		}
		versions = append(versions, v)
	}

	reference := versions[0]
	for _, v := range versions[1:] {
		reference = mustMerge(t, reference, v)
	}
	want := digest(t, reference)

	rng := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 50; round++ {
		// Перемешиваем и добавляем дубликаты (повторная доставка)
		order := append([]*Entity{}, versions...)
		order = append(order, versions[rng.IntN(len(versions))])
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		acc := order[0]
		for _, v := range order[1:] {
			acc = mustMerge(t, acc, v)
		}
		assert.Equal(t, want, digest(t, acc), "round %d", round)
	}
}
