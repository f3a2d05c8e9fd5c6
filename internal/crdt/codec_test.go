package crdt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_WireFormat(t *testing.T) {
	clock := frozenClock("A", 1700000000000)
	e, err := NewEntity(clock, "INV-1", 1, map[string]Value{
		"amount":      Number(100),
		"customer_id": String("C-1"),
		"due_date":    Time(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)),
		"note":        Null(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Set(clock, "status", String("sent")))

	data, err := json.MarshalIndent(e, "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t)
	g.Assert(t, "invoice_entity", data)
}

func TestEntity_RoundTripIsMergeTransparent(t *testing.T) {
	clockA := frozenClock("A", 1000)
	a, err := NewEntity(clockA, "INV-7", 3, map[string]Value{
		"amount":   Number(12.5),
		"paid":     Bool(false),
		"customer": String("C-9"),
		"issued":   Time(time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC)),
	})
	require.NoError(t, err)

	b := a.Clone()
	require.NoError(t, b.Set(frozenClock("B", 2000), "paid", Bool(true)))

	data, err := Encode(b)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	direct := mustMerge(t, a, b)
	viaWire := mustMerge(t, a, decoded)
	assert.Equal(t, digest(t, direct), digest(t, viaWire))

	again, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again), "encoding must be canonical")
}

func TestDecode_Rejects(t *testing.T) {
	valid, err := Encode(newInvoice(t, "A", 1000))
	require.NoError(t, err)

	withoutKey := func(key string) string {
		var doc map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(valid, &doc))
		delete(doc, key)
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		return string(out)
	}
	withKey := func(key, raw string) string {
		var doc map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(valid, &doc))
		doc[key] = json.RawMessage(raw)
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		return string(out)
	}

	tests := []struct {
		name  string
		input string
		field string
	}{
		{name: "not json", input: `{"id":`},
		{name: "truncated document", input: `{"id": "x",`},
		{name: "array", input: `[]`},
		{name: "missing id", input: withoutKey("id"), field: "id"},
		{name: "missing tombstone", input: withoutKey("is_deleted"), field: "is_deleted"},
		{name: "missing schema version", input: withoutKey("schema_version"), field: "schema_version"},
		{name: "bad created_at", input: withKey("created_at", `"yesterday"`), field: "created_at"},
		{
			name:  "composite field value",
			input: withKey("lines", `{"value":[1,2],"timestamp":{"physical_time_ms":1000,"logical_counter":0,"node_id":"A"},"node_id":"A"}`),
			field: "lines",
		},
		{
			name:  "invalid field name",
			input: withKey("Bad-Name", `{"value":1,"timestamp":{"physical_time_ms":1000,"logical_counter":0,"node_id":"A"},"node_id":"A"}`),
			field: "Bad-Name",
		},
		{
			name:  "tombstone is not bool",
			input: withKey("is_deleted", `{"value":"yes","timestamp":{"physical_time_ms":1000,"logical_counter":0,"node_id":"A"},"node_id":"A"}`),
			field: "is_deleted",
		},
		{
			name:  "register newer than updated_at",
			input: withKey("amount", `{"value":1,"timestamp":{"physical_time_ms":9000,"logical_counter":0,"node_id":"A"},"node_id":"A"}`),
			field: "updated_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			if tt.field != "" {
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}
}

func TestEncode_RejectsReservedFieldName(t *testing.T) {
	e := newInvoice(t, "A", 1000)
	e.Fields["updated_at"] = reg(Number(1), 1000, 0, "A")

	_, err := Encode(e)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLatestStamp(t *testing.T) {
	e := newInvoice(t, "A", 1000)
	e.Fields["status"] = reg(String("paid"), 3000, 2, "B")
	e.IsDeleted = reg(Bool(true), 2000, 0, "A")

	assert.Equal(t, stamp(3000, 2, "B"), LatestStamp(e))
}
