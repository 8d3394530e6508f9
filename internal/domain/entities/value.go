package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ValueKind identifies which variant a Value holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindScalar
	KindList
	KindMapping
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMapping:
		return "mapping"
	default:
		return "null"
	}
}

// Entry is one key/value pair of a mapping Value.
type Entry struct {
	Key   string
	Value Value
}

// Value is a shape-tolerant JSON value: null, scalar, list or mapping.
// Mappings keep the key order of the source document, which the report renderer relies on.
type Value struct {
	Kind    ValueKind
	Scalar  any
	List    []Value
	Mapping []Entry
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Scalar wraps a string, bool or number.
func Scalar(v any) Value { return Value{Kind: KindScalar, Scalar: v} }

// List wraps items as a list Value.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindList, List: items}
}

// Mapping wraps entries as a mapping Value.
func Mapping(entries ...Entry) Value {
	if entries == nil {
		entries = []Entry{}
	}
	return Value{Kind: KindMapping, Mapping: entries}
}

// ParseValue decodes raw JSON into a Value, preserving mapping key order.
func ParseValue(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

func (v Value) IsNull() bool    { return v.Kind == KindNull }
func (v Value) IsMapping() bool { return v.Kind == KindMapping }

// Get returns the value under key in a mapping.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindMapping {
		return Value{}, false
	}
	for _, e := range v.Mapping {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Keys returns the mapping keys in order.
func (v Value) Keys() []string {
	if v.Kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(v.Mapping))
	for _, e := range v.Mapping {
		keys = append(keys, e.Key)
	}
	return keys
}

// Empty reports whether the value carries no information: null, blank string, or an empty container.
func (v Value) Empty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindScalar:
		s, ok := v.Scalar.(string)
		return ok && strings.TrimSpace(s) == ""
	case KindList:
		return len(v.List) == 0
	case KindMapping:
		return len(v.Mapping) == 0
	}
	return true
}

// String renders scalars as plain text and containers as compact JSON.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindScalar:
		if s, ok := v.Scalar.(string); ok {
			return s
		}
		return fmt.Sprint(v.Scalar)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindScalar:
		return json.Marshal(v.Scalar)
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMapping:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, e := range v.Mapping {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(e.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			data, err := e.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown value kind %d", v.Kind)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}
	*v = parsed
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return List(items...), nil
		case '{':
			entries := []Entry{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("invalid object key %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				entries = append(entries, Entry{Key: key, Value: item})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Mapping(entries...), nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return Scalar(t), nil
	}
}
