package domain

import (
	"bytes"
	"encoding/json"
)

// Patch is a three-state optional field: absent (inherit), present with a
// value, or present and explicitly null (cleared).
//
// The zero value is absent. When a Patch is a struct field decoded by
// encoding/json, UnmarshalJSON runs for an explicit null too, which is what
// lets the decoder tell a missing key from "key": null.
type Patch[T any] struct {
	present bool
	value   *T
}

// Set returns a present patch carrying v.
func Set[T any](v T) Patch[T] {
	return Patch[T]{present: true, value: &v}
}

// Null returns a present patch that clears the field.
func Null[T any]() Patch[T] {
	return Patch[T]{present: true}
}

func (p Patch[T]) Present() bool { return p.present }

func (p Patch[T]) IsNull() bool { return p.present && p.value == nil }

// Value returns the carried value; ok is false when absent or null.
func (p Patch[T]) Value() (v T, ok bool) {
	if !p.present || p.value == nil {
		return v, false
	}
	return *p.value, true
}

// Apply resolves the patch against an inherited nullable value.
func (p Patch[T]) Apply(inherited *T) *T {
	if !p.present {
		return inherited
	}
	if p.value == nil {
		return nil
	}
	v := *p.value
	return &v
}

func (p Patch[T]) MarshalJSON() ([]byte, error) {
	if p.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.value)
}

func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		p.value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.value = &v
	return nil
}
