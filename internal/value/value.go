package value

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an object, in document order
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable parsed JSON value.
// Numbers keep their literal text so that no precision is lost on the way
// to the output table.
type Value struct {
	kind    Kind
	boolean bool
	text    string // number literal or string contents
	items   []Value
	members []Member
}

// Null returns the null value
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number wraps a JSON number literal
func Number(literal string) Value { return Value{kind: KindNumber, text: literal} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, text: s} }

// Array builds an array from items (copied)
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value{}, items...)}
}

// Object builds an object from members. A repeated key replaces the value of
// its first occurrence, keeping that position.
func Object(members ...Member) Value {
	out := make([]Member, 0, len(members))
	seen := make(map[string]int, len(members))
	for _, m := range members {
		if i, ok := seen[m.Key]; ok {
			out[i].Value = m.Value
			continue
		}
		seen[m.Key] = len(out)
		out = append(out, m)
	}
	return Value{kind: KindObject, members: out}
}

// Kind returns the variant tag
func (v Value) Kind() Kind { return v.kind }

// IsContainer reports whether v is an array or an object
func (v Value) IsContainer() bool {
	return v.kind == KindArray || v.kind == KindObject
}

// Bool returns the boolean payload; false for other kinds
func (v Value) Bool() bool { return v.boolean }

// Text returns the string contents or number literal; empty for other kinds
func (v Value) Text() string { return v.text }

// Len returns the number of items or members; 0 for primitives
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// Items returns a copy of the array items
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return append([]Value{}, v.items...)
}

// Members returns a copy of the object members in document order
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return append([]Member{}, v.members...)
}

// Lookup returns the member value stored under key
func (v Value) Lookup(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// String returns the canonical text form used for table cells.
// Strings render raw, numbers as their literal, booleans as true/false and
// containers as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindNumber, KindString:
		return v.text
	default:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// MarshalJSON encodes v back to compact JSON, preserving member order
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		buf.WriteString(v.text)
	case KindString:
		data, err := json.Marshal(v.text)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
