package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OrderedFields is a JSON object decoded into label/value pairs in document order.
// Go maps would lose the order, and the processor shows custom fields in entry order.
type OrderedFields []CustomField

func (f *OrderedFields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("custom fields must be a JSON object")
	}

	out := OrderedFields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("custom field %q: %w", label, err)
		}
		out = append(out, CustomField{Label: label, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*f = out
	return nil
}

func (f OrderedFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(field.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
