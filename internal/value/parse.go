package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ParseString parses s as exactly one JSON value
func ParseString(s string) (Value, error) {
	return Parse([]byte(s))
}

// Parse parses data as exactly one JSON value. Trailing non-whitespace
// content is an error.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decode(dec)
	if err != nil {
		return Value{}, err
	}

	tok, err := dec.Token()
	if err == io.EOF {
		return v, nil
	}
	if err != nil {
		return Value{}, err
	}
	return Value{}, fmt.Errorf("unexpected %v after top-level value at offset %d", tok, dec.InputOffset())
}

func nextToken(dec *json.Decoder) (json.Token, error) {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return tok, err
}

func decode(dec *json.Decoder) (Value, error) {
	tok, err := nextToken(dec)
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t.String()), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v at offset %d", tok, dec.InputOffset())
}

func decodeObject(dec *json.Decoder) (Value, error) {
	var members []Member
	for dec.More() {
		tok, err := nextToken(dec)
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected object key at offset %d, got %v", dec.InputOffset(), tok)
		}
		v, err := decode(dec)
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: v})
	}
	if _, err := nextToken(dec); err != nil {
		return Value{}, err
	}
	return Object(members...), nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	items := []Value{}
	for dec.More() {
		v, err := decode(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	if _, err := nextToken(dec); err != nil {
		return Value{}, err
	}
	return Value{kind: KindArray, items: items}, nil
}
