package crdt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
)

// TimeLayout is the wire layout of time values. Fixed width and UTC, so
// encoded times sort lexicographically in path queries.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindString: "string",
	KindNumber: "number",
	KindBool:   "bool",
	KindTime:   "time",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindNull, fmt.Errorf("unknown value kind %q", s)
}

// Value is a closed tagged union of the primitive kinds a register may hold.
// The zero Value is null.
type Value struct {
	t    time.Time
	str  string
	num  float64
	kind Kind
	b    bool
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// String returns a string value. Text is normalised to NFC so equal text
// typed on different devices encodes to identical bytes.
func String(s string) Value {
	return Value{kind: KindString, str: norm.NFC.String(s)}
}

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Time returns a time value moved to UTC, without the monotonic reading.
// TimeLayout keeps full nanosecond precision; years outside 0000-9999 do not
// fit it and fail Validate.
func Time(t time.Time) Value {
	return Value{kind: KindTime, t: t.UTC().Round(0)}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsString returns the string payload. Time values are returned in TimeLayout.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindTime:
		return v.t.Format(TimeLayout), true
	}
	return "", false
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

// Equal compares canonical encodings.
func (v Value) Equal(other Value) bool {
	a, errA := v.MarshalJSON()
	b, errB := other.MarshalJSON()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Validate rejects values that have no JSON encoding.
func (v Value) Validate() error {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("number %v is not representable", v.num)
		}
	case KindTime:
		if y := v.t.Year(); y < 0 || y > 9999 {
			return fmt.Errorf("time %s does not fit %s", v.t.Format(time.RFC3339Nano), TimeLayout)
		}
	}
	return nil
}

// Coerce returns v as the given kind where the wire format cannot tell the
// two apart: a time decoded into a string field becomes that string again.
// Any other value is returned unchanged.
func (v Value) Coerce(kind Kind) Value {
	if kind == KindString && v.kind == KindTime {
		return String(v.t.Format(TimeLayout))
	}
	return v
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(TimeLayout)
	}
	return ""
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindTime:
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return json.Marshal(v.t.Format(TimeLayout))
	}
	return nil, fmt.Errorf("unknown value kind %d", v.kind)
}

// UnmarshalJSON implements json.Unmarshaler. Only JSON primitives are
// accepted; strings in TimeLayout decode as time values. The document has
// no kind tag, so a string field holding such text comes back as a time
// until the table declaration restores it with Coerce.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}

	switch data[0] {
	case 'n':
		if string(data) != "null" {
			return fmt.Errorf("invalid value %s", data)
		}
		*v = Null()
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if t, ok := parseWireTime(s); ok {
			*v = Time(t)
			return nil
		}
		*v = String(s)
	case '{', '[':
		return fmt.Errorf("value must be a JSON primitive, got %s", data)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid number %s: %w", data, err)
		}
		*v = Number(f)
	}
	return nil
}

func parseWireTime(s string) (time.Time, bool) {
	if len(s) != len(TimeLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil || t.Format(TimeLayout) != s {
		return time.Time{}, false
	}
	return t, true
}

// ParseValue converts command-line text into a Value of the given kind.
func ParseValue(kind Kind, s string) (Value, error) {
	switch kind {
	case KindNull:
		return Null(), nil
	case KindString:
		return String(s), nil
	case KindNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return Number(f), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("invalid bool %q: %w", s, err)
		}
		return Bool(b), nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Value{}, fmt.Errorf("invalid time %q: %w", s, err)
		}
		return Time(t), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %d", kind)
}
