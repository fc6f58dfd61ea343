package storage

import (
	"bytes"
	"encoding/json"
)

const metadataIndent = "    "

// Metadata is a JSON object that keeps its keys in insertion order.
type Metadata struct {
	keys   []string
	values map[string]interface{}
}

// NewMetadata returns an empty Metadata.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]interface{})}
}

// Set adds or replaces key. Replacing keeps the original position.
func (m *Metadata) Set(key string, value interface{}) *Metadata {
	if m.values == nil {
		m.values = make(map[string]interface{})
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	return append([]string(nil), m.keys...)
}

// MarshalJSON renders the object with a four space indent and no space
// after the colon, e.g. {\n    "url":"https://..."\n}.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	if m == nil || len(m.keys) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range m.keys {
		key, err := encodeValue(k)
		if err != nil {
			return nil, err
		}
		value, err := encodeValue(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.WriteString(metadataIndent)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
		if i < len(m.keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
