package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Scalar is a JSON value that clients send either as a number or as a
// string ("20", 20, "2024-05-01"). It keeps the textual form and renders
// numeric values back as JSON numbers.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*s = ""
	case b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(strings.TrimSpace(str))
	default:
		*s = Scalar(b)
	}
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if _, ok := s.Decimal(); ok && json.Valid([]byte(s)) {
		return []byte(s), nil
	}
	return json.Marshal(string(s))
}

// Decimal parses the value as a decimal number.
func (s Scalar) Decimal() (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Int parses the value as a base-10 integer.
func (s Scalar) Int() (int, bool) {
	n, err := strconv.Atoi(string(s))
	return n, err == nil
}

func (s Scalar) String() string { return string(s) }

// UnmarshalParam lets form and query binding fill a Scalar.
func (s *Scalar) UnmarshalParam(v string) error {
	*s = Scalar(strings.TrimSpace(v))
	return nil
}
