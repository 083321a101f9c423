package session

import (
	"bytes"
	"encoding/json"
)

// Answers is an insertion-ordered question-key → value mapping.
type Answers struct {
	keys   []string
	values map[string]string
}

// NewAnswers returns an empty ordered mapping.
func NewAnswers() *Answers {
	return &Answers{values: make(map[string]string)}
}

// Set stores value under key. Re-setting a key keeps its original position.
func (a *Answers) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the value for key.
func (a *Answers) Get(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a.values[key]
	return v, ok
}

// Value returns the value for key or "".
func (a *Answers) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// Delete removes key if present.
func (a *Answers) Delete(key string) {
	if a == nil {
		return
	}
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of stored answers.
func (a *Answers) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Keys returns the keys in insertion order.
func (a *Answers) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

// Map returns an unordered copy, used for persistence.
func (a *Answers) Map() map[string]string {
	out := make(map[string]string, a.Len())
	if a == nil {
		return out
	}
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy.
func (a *Answers) Clone() *Answers {
	c := NewAnswers()
	if a == nil {
		return c
	}
	for _, k := range a.keys {
		c.Set(k, a.values[k])
	}
	return c
}

// MarshalJSON writes keys in insertion order.
func (a *Answers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(a.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
