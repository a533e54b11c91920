package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/google/uuid"
)

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewID returns a time-ordered identifier (UUIDv7), so ordering records by id
// orders them by insertion.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CheckField validates a top-level field name used in queries.
func CheckField(field string) error {
	if !fieldRe.MatchString(field) {
		return fmt.Errorf("store: invalid field name %q", field)
	}
	return nil
}

// Merge applies patch to the JSON object doc and returns the new body.
func Merge(doc json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	obj, err := decodeObject(doc)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if v == nil {
			delete(obj, k)
			continue
		}
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("store: patch field %s: %w", k, err)
		}
		obj[k] = nv
	}
	return json.Marshal(obj)
}

// Matches reports whether every key of cond equals the value stored in doc.
// Values are compared after a JSON round trip so 3 and int64(3) are equal.
// A nil condition value matches a missing key.
func Matches(doc json.RawMessage, cond map[string]any) (bool, error) {
	obj, err := decodeObject(doc)
	if err != nil {
		return false, err
	}
	for k, want := range cond {
		w, err := normalize(want)
		if err != nil {
			return false, err
		}
		if !reflect.DeepEqual(obj[k], w) {
			return false, nil
		}
	}
	return true, nil
}

// FieldEquals reports whether the top-level field of doc, rendered as a
// string, equals value. Used by FindBy on backends without native queries.
func FieldEquals(doc json.RawMessage, field, value string) bool {
	obj, err := decodeObject(doc)
	if err != nil {
		return false
	}
	switch v := obj[field].(type) {
	case string:
		return v == value
	case nil:
		return false
	default:
		return fmt.Sprint(v) == value
	}
}

func decodeObject(doc json.RawMessage) (map[string]any, error) {
	obj := map[string]any{}
	if len(doc) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(doc, &obj); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
