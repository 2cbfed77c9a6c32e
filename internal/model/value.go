package model

import "fmt"

// ValueKind is the runtime type of a metadata value. Metadata keys are not
// declared ahead of time, so the kind is discovered per document at query
// time. A key may appear with different kinds across documents; the
// classifier reports it under every kind it matches.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindText
	KindBool
)

// String returns the lowercase name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// ParseValueKind maps the external field-type names onto a ValueKind.
// Only "number" and "string" are addressable by callers; bool and null
// exist so classification over raw documents is total.
func ParseValueKind(s string) (ValueKind, error) {
	switch s {
	case "number":
		return KindNumber, nil
	case "string":
		return KindText, nil
	default:
		return KindNull, fmt.Errorf("parse value kind %q: %w", s, ErrUnsupportedOperation)
	}
}

// Value is a tagged metadata scalar. Representing metadata as a closed set
// of tagged values keeps classification a pure function instead of
// scattered runtime type switches.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
	Bool   bool
}

// TagValue converts a raw decoded scalar into a tagged Value. BSON decoding
// yields float64, int32/int64, string, bool, or nil for metadata scalars;
// anything else (nested documents, arrays) is treated as null and therefore
// never classified.
func TagValue(raw any) Value {
	switch v := raw.(type) {
	case float64:
		return Value{Kind: KindNumber, Number: v}
	case float32:
		return Value{Kind: KindNumber, Number: float64(v)}
	case int:
		return Value{Kind: KindNumber, Number: float64(v)}
	case int32:
		return Value{Kind: KindNumber, Number: float64(v)}
	case int64:
		return Value{Kind: KindNumber, Number: float64(v)}
	case string:
		return Value{Kind: KindText, Text: v}
	case bool:
		return Value{Kind: KindBool, Bool: v}
	default:
		return Value{Kind: KindNull}
	}
}

// KeyValue is one flattened (metadata key, tagged value) pair.
type KeyValue struct {
	Key   string
	Value Value
}

// FlattenMetadata flattens a metadata map into tagged pairs. Empty or
// absent maps produce no pairs.
func FlattenMetadata(metadata map[string]any) []KeyValue {
	if len(metadata) == 0 {
		return nil
	}
	pairs := make([]KeyValue, 0, len(metadata))
	for k, v := range metadata {
		pairs = append(pairs, KeyValue{Key: k, Value: TagValue(v)})
	}
	return pairs
}
