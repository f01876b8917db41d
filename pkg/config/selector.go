package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// presence records how a key appeared in the document.
type presence uint8

const (
	absent presence = iota // key not present
	null                   // key present with a null value
	set                    // key present with a value
)

const nullTag = "!!null"

// List is a selector field: a sequence of values that may also be written
// as a single scalar or as null. The three literal states (absent, null,
// sequence) are kept apart so a loaded document serializes back unchanged,
// even though absent, null, and empty all select everything.
type List[T any] struct {
	items  []T
	state  presence
	scalar bool // written as a bare scalar instead of a sequence
}

// ListOf returns a set list holding items. ListOf() with no items is the
// explicit empty sequence.
func ListOf[T any](items ...T) List[T] {
	return List[T]{items: append(make([]T, 0, len(items)), items...), state: set}
}

// NullList returns a list that was written as null.
func NullList[T any]() List[T] {
	return List[T]{state: null}
}

// IsAbsent returns true if the key was not present.
func (l List[T]) IsAbsent() bool { return l.state == absent }

// IsNull returns true if the key was present with a null value.
func (l List[T]) IsNull() bool { return l.state == null }

// IsSet returns true if the key held a sequence or a scalar.
func (l List[T]) IsSet() bool { return l.state == set }

// IsAll returns true if the selector selects every available value.
func (l List[T]) IsAll() bool { return l.state != set || len(l.items) == 0 }

// Len returns the number of explicit items.
func (l List[T]) Len() int { return len(l.items) }

// Items returns a copy of the explicit items; nil unless the list is set.
func (l List[T]) Items() []T {
	if l.state != set {
		return nil
	}
	return append(make([]T, 0, len(l.items)), l.items...)
}

// IsZero lets omitempty drop absent lists on output.
func (l List[T]) IsZero() bool { return l.state == absent }

// UnmarshalYAML accepts a sequence, a single scalar, or null.
func (l *List[T]) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() == nullTag {
			*l = List[T]{state: null}
			return nil
		}
		var v T
		if err := node.Decode(&v); err != nil {
			return err
		}
		*l = List[T]{items: []T{v}, state: set, scalar: true}
		return nil
	case yaml.SequenceNode:
		items := make([]T, 0, len(node.Content))
		if err := node.Decode(&items); err != nil {
			return err
		}
		if items == nil {
			items = []T{}
		}
		*l = List[T]{items: items, state: set}
		return nil
	default:
		return fmt.Errorf("line %d: expected a sequence, a scalar, or null", node.Line)
	}
}

// MarshalYAML writes the list back in the form it was read.
func (l List[T]) MarshalYAML() (interface{}, error) {
	switch {
	case l.state != set:
		return nil, nil
	case l.scalar && len(l.items) == 1:
		return l.items[0], nil
	case len(l.items) == 0:
		return []T{}, nil
	default:
		return l.items, nil
	}
}

// Optional is a scalar field that may be absent, null, or set.
type Optional[T any] struct {
	value T
	state presence
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, state: set}
}

// Null returns an Optional that was written as null.
func Null[T any]() Optional[T] {
	return Optional[T]{state: null}
}

// Get returns the value and whether it was set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == set
}

// Or returns the value if set, def otherwise.
func (o Optional[T]) Or(def T) T {
	if o.state == set {
		return o.value
	}
	return def
}

// IsAbsent returns true if the key was not present.
func (o Optional[T]) IsAbsent() bool { return o.state == absent }

// IsNull returns true if the key was present with a null value.
func (o Optional[T]) IsNull() bool { return o.state == null }

// IsSet returns true if the key held a value.
func (o Optional[T]) IsSet() bool { return o.state == set }

// IsZero lets omitempty drop absent values on output.
func (o Optional[T]) IsZero() bool { return o.state == absent }

// UnmarshalYAML accepts a scalar of type T or null.
func (o *Optional[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == nullTag {
		*o = Optional[T]{state: null}
		return nil
	}
	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	*o = Optional[T]{value: v, state: set}
	return nil
}

// MarshalYAML writes null for a null Optional and the value otherwise.
func (o Optional[T]) MarshalYAML() (interface{}, error) {
	if o.state != set {
		return nil, nil
	}
	return o.value, nil
}
