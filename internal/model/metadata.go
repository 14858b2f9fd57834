package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MetadataKind discriminates the two scalar shapes metadata values may take.
// Numbers become extra fields in the time-series store, text becomes extra
// tags, so the distinction must survive decoding.
type MetadataKind int

const (
	MetadataNumber MetadataKind = iota
	MetadataText
)

// MetadataValue is a tagged scalar: either a number or a piece of text.
type MetadataValue struct {
	Kind   MetadataKind
	Number float64
	Text   string
}

// Metadata maps optional per-reading annotation keys to scalar values.
type Metadata map[string]MetadataValue

func NumberValue(n float64) MetadataValue {
	return MetadataValue{Kind: MetadataNumber, Number: n}
}

func TextValue(s string) MetadataValue {
	return MetadataValue{Kind: MetadataText, Text: s}
}

func (v MetadataValue) MarshalJSON() ([]byte, error) {
	if v.Kind == MetadataNumber {
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Text)
}

func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case float64:
		*v = NumberValue(t)
	case string:
		*v = TextValue(t)
	case bool:
		*v = TextValue(strconv.FormatBool(t))
	case nil:
		*v = TextValue("")
	default:
		return fmt.Errorf("metadata value must be a scalar, got %T", raw)
	}
	return nil
}

// Scalars flattens metadata back to plain scalar values, for stores that
// take documents rather than tagged variants.
func (m Metadata) Scalars() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v.Kind == MetadataNumber {
			out[k] = v.Number
		} else {
			out[k] = v.Text
		}
	}
	return out
}

// String renders the underlying scalar, whatever its kind.
func (v MetadataValue) String() string {
	if v.Kind == MetadataNumber {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}
