package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// QueryKey is the payload key under which SQL statements are stored.
const QueryKey = "query"

// DataEntry is one parsed record of a data source.
type DataEntry struct {
	ID           string
	DataSourceID string
	Ordinal      int64
	Payload      Payload
	CreatedAt    time.Time
}

// ValueKind tags the scalar held by a Value.
type ValueKind uint8

// Value kinds. Parsers only emit strings; the others exist for coercion.
const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a tagged scalar cell.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// StringValue wraps s.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue wraps f.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String renders the value as text.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = StringValue(x)
	case float64:
		*v = NumberValue(x)
	case bool:
		*v = BoolValue(x)
	default:
		return fmt.Errorf("unsupported payload value %s", data)
	}
	return nil
}

// Field is one key/value pair of a payload.
type Field struct {
	Key   string
	Value Value
}

// Payload is an insertion-ordered mapping from key to scalar value.
type Payload struct {
	fields []Field
	index  map[string]int
}

// NewPayload returns an empty payload sized for n keys.
func NewPayload(n int) Payload {
	return Payload{fields: make([]Field, 0, n), index: make(map[string]int, n)}
}

// Set stores v under key. An existing key keeps its position.
func (p *Payload) Set(key string, v Value) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[key]; ok {
		p.fields[i].Value = v
		return
	}
	p.index[key] = len(p.fields)
	p.fields = append(p.fields, Field{Key: key, Value: v})
}

// Get returns the value under key.
func (p Payload) Get(key string) (Value, bool) {
	i, ok := p.index[key]
	if !ok {
		return Value{}, false
	}
	return p.fields[i].Value, true
}

// Len returns the number of keys.
func (p Payload) Len() int { return len(p.fields) }

// Keys returns the keys in insertion order.
func (p Payload) Keys() []string {
	keys := make([]string, len(p.fields))
	for i, f := range p.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns the pairs in insertion order.
func (p Payload) Fields() []Field {
	return append([]Field(nil), p.fields...)
}

// Strings flattens the payload to a plain map, dropping order.
func (p Payload) Strings() map[string]string {
	m := make(map[string]string, len(p.fields))
	for _, f := range p.fields {
		m[f.Key] = f.Value.String()
	}
	return m
}

// MarshalJSON writes the payload as a JSON object in key order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping key order.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("payload must be a JSON object")
	}
	out := NewPayload(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("payload key must be a string")
		}
		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("payload key %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
