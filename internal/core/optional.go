package core

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes an absent field from one explicitly set to its zero
// value. Set is true whenever the field appeared in the input, including as
// null.
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Get returns the value and whether it was set to a non-null value.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set && !o.Null
}

// Present reports whether the field was set to a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		o.Null = true
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}
