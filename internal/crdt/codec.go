package crdt

import (
	"encoding/hex"
	"errors"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/ledgersync/internal/hlc"
	"github.com/iudanet/ledgersync/internal/validation"
)

// Top-level keys of the entity document. Field registers sit next to them,
// keyed by field name, so that a path like status.value addresses a field.
const (
	keyID            = "id"
	keyCreatedAt     = "created_at"
	keyUpdatedAt     = "updated_at"
	keyNodeID        = "node_id"
	keySchemaVersion = "schema_version"
	keyIsDeleted     = "is_deleted"
)

// MarshalJSON encodes the entity as its wire/at-rest document. Keys are
// emitted in sorted order, so equal entities encode to equal bytes.
func (e *Entity) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(e.Fields)+6)
	for name, r := range e.Fields {
		if _, reserved := validation.ReservedFields[name]; reserved {
			return nil, invalid(e.ID, name, "field name is reserved", nil)
		}
		doc[name] = r
	}

	doc[keyID] = e.ID
	doc[keyCreatedAt] = e.CreatedAt
	doc[keyUpdatedAt] = e.UpdatedAt
	doc[keyNodeID] = e.NodeID
	doc[keySchemaVersion] = e.SchemaVersion
	doc[keyIsDeleted] = e.IsDeleted

	return json.Marshal(doc)
}

// UnmarshalJSON decodes a wire/at-rest document. Any structural problem is
// reported as a *ValidationError.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return invalid("", "", "malformed entity document", err)
	}

	var out Entity
	required := []struct {
		dst any
		key string
	}{
		{&out.ID, keyID},
		{&out.CreatedAt, keyCreatedAt},
		{&out.UpdatedAt, keyUpdatedAt},
		{&out.NodeID, keyNodeID},
		{&out.SchemaVersion, keySchemaVersion},
		{&out.IsDeleted, keyIsDeleted},
	}
	for _, r := range required {
		raw, ok := doc[r.key]
		if !ok {
			return invalid(out.ID, r.key, "missing key", nil)
		}
		if err := json.Unmarshal(raw, r.dst); err != nil {
			return invalid(out.ID, r.key, "malformed key", err)
		}
		delete(doc, r.key)
	}

	out.Fields = make(map[string]Register, len(doc))
	for name, raw := range doc {
		var r Register
		if err := json.Unmarshal(raw, &r); err != nil {
			return invalid(out.ID, name, "malformed register", err)
		}
		out.Fields[name] = r
	}

	if err := out.Validate(); err != nil {
		return err
	}

	*e = out
	return nil
}

// Encode returns the canonical document of an entity.
func Encode(e *Entity) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity %s: %w", e.ID, err)
	}
	return data, nil
}

// Decode parses a canonical document. Every failure, syntax errors
// included, is a *ValidationError.
func Decode(data []byte) (*Entity, error) {
	var e Entity
	if err := json.Unmarshal(data, &e); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, invalid("", "", "malformed entity document", err)
	}
	return &e, nil
}

// Digest returns the hex blake2b-256 hash of the canonical document.
// Two replicas hold bit-identical copies iff their digests match.
func Digest(e *Entity) (string, error) {
	data, err := Encode(e)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// LatestStamp returns the newest timestamp carried by any register.
func LatestStamp(e *Entity) hlc.Timestamp {
	latest := hlc.Max(e.CreatedAt, e.IsDeleted.Timestamp)
	for _, r := range e.Fields {
		latest = hlc.Max(latest, r.Timestamp)
	}
	return latest
}
