package crdt

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_JSONRoundTrip(t *testing.T) {
	due := time.Date(2024, 3, 31, 12, 30, 0, 123456789, time.FixedZone("IST", 5*3600+1800))

	tests := []struct {
		name     string
		value    Value
		expected string
		kind     Kind
	}{
		{name: "null", value: Null(), expected: `null`, kind: KindNull},
		{name: "string", value: String("paid"), expected: `"paid"`, kind: KindString},
		{name: "number", value: Number(100), expected: `100`, kind: KindNumber},
		{name: "fraction", value: Number(1234.56), expected: `1234.56`, kind: KindNumber},
		{name: "bool", value: Bool(true), expected: `true`, kind: KindBool},
		{name: "time in UTC", value: Time(due), expected: `"2024-03-31T07:00:00.123456789Z"`, kind: KindTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))

			var decoded Value
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.kind, decoded.Kind())
			assert.True(t, tt.value.Equal(decoded), "decoded %v != %v", decoded, tt.value)
		})
	}
}

func TestValue_StringIsNFCNormalised(t *testing.T) {
	composed := String("Caf\u00e9")
	decomposed := String("Cafe\u0301")

	assert.True(t, composed.Equal(decomposed))
	s, ok := decomposed.AsString()
	require.True(t, ok)
	assert.Equal(t, "Caf\u00e9", s)
}

func TestValue_UnmarshalRejectsComposite(t *testing.T) {
	for _, input := range []string{`{"a":1}`, `[1,2]`, `nul`, `1.2.3`} {
		var v Value
		assert.Error(t, json.Unmarshal([]byte(input), &v), "input %s", input)
	}
}

func TestValue_NonFiniteNumber(t *testing.T) {
	v := Number(math.NaN())
	assert.Error(t, v.Validate())

	_, err := json.Marshal(v)
	assert.Error(t, err)
}

func TestValue_TimeOutsideLayout(t *testing.T) {
	for _, year := range []int{-1, 10000} {
		v := Time(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.Error(t, v.Validate(), "year %d", year)

		_, err := json.Marshal(v)
		assert.Error(t, err, "year %d", year)
	}

	assert.NoError(t, Time(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)).Validate())
	assert.NoError(t, Time(time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC)).Validate())
}

func TestValue_Coerce(t *testing.T) {
	text := "2024-01-01T00:00:00.000000000Z"

	var decoded Value
	require.NoError(t, json.Unmarshal([]byte(`"`+text+`"`), &decoded))
	require.Equal(t, KindTime, decoded.Kind())

	tests := []struct {
		name  string
		value Value
		kind  Kind
		want  Value
	}{
		{name: "time into string field", value: decoded, kind: KindString, want: String(text)},
		{name: "time into time field", value: decoded, kind: KindTime, want: decoded},
		{name: "string stays string", value: String("ACME"), kind: KindString, want: String("ACME")},
		{name: "number is not touched", value: Number(1), kind: KindString, want: Number(1)},
		{name: "null is not touched", value: Null(), kind: KindString, want: Null()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.value.Coerce(tt.kind)
			assert.Equal(t, tt.want.Kind(), got.Kind())
			assert.True(t, tt.want.Equal(got))
		})
	}
}

func TestValue_Accessors(t *testing.T) {
	n, ok := Number(42).AsNumber()
	assert.True(t, ok)
	assert.Equal(t, float64(42), n)

	_, ok = String("42").AsNumber()
	assert.False(t, ok)

	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	assert.True(t, Null().IsNull())
	assert.Equal(t, "null", Null().String())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    Kind
		want    Value
		wantErr bool
	}{
		{name: "string", input: "paid", kind: KindString, want: String("paid")},
		{name: "number", input: "100.5", kind: KindNumber, want: Number(100.5)},
		{name: "bool", input: "true", kind: KindBool, want: Bool(true)},
		{name: "time", input: "2024-03-31T00:00:00Z", kind: KindTime, want: Time(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))},
		{name: "null", input: "anything", kind: KindNull, want: Null()},
		{name: "bad number", input: "abc", kind: KindNumber, wantErr: true},
		{name: "bad bool", input: "maybe", kind: KindBool, wantErr: true},
		{name: "bad time", input: "yesterday", kind: KindTime, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.kind, tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindNull, KindString, KindNumber, KindBool, KindTime} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("decimal")
	assert.Error(t, err)
}
