// Package visibility holds the per-field visibility state driven by the control surface.
package visibility

import (
	"fmt"
	"maps"
	"slices"

	"github.com/dasdy/gridsync/model"
)

// UnknownFieldError is returned when a toggle names a field the view does not have.
type UnknownFieldError struct {
	Key model.Key
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", string(e.Key))
}

// Toggle is a user intent to show or hide one field.
type Toggle struct {
	Key     model.Key
	Visible bool
}

// State maps field keys to visibility. The zero value has no fields.
// A State is never modified in place; Next returns a new one.
type State struct {
	order   []model.Key
	visible map[model.Key]bool
}

// New creates a state with every key visible.
func New(keys []model.Key) State {
	visible := make(map[model.Key]bool, len(keys))
	for _, k := range keys {
		visible[k] = true
	}

	return State{order: slices.Clone(keys), visible: visible}
}

func (s State) Has(key model.Key) bool {
	_, ok := s.visible[key]

	return ok
}

// Visible reports the state of a key; unknown keys report false.
func (s State) Visible(key model.Key) bool {
	return s.visible[key]
}

func (s State) Keys() []model.Key {
	return slices.Clone(s.order)
}

// Hidden returns the hidden keys in field order.
func (s State) Hidden() []model.Key {
	var hidden []model.Key

	for _, k := range s.order {
		if !s.visible[k] {
			hidden = append(hidden, k)
		}
	}

	return hidden
}

// Next computes the state after applying the toggle. The boolean reports whether
// anything changed; the receiver is left untouched.
func (s State) Next(t Toggle) (State, bool, error) {
	cur, ok := s.visible[t.Key]
	if !ok {
		return s, false, &UnknownFieldError{Key: t.Key}
	}

	if cur == t.Visible {
		return s, false, nil
	}

	next := maps.Clone(s.visible)
	next[t.Key] = t.Visible

	return State{order: s.order, visible: next}, true, nil
}

// Equal reports whether both states hold the same keys with the same values.
func (s State) Equal(o State) bool {
	return slices.Equal(s.order, o.order) && maps.Equal(s.visible, o.visible)
}
