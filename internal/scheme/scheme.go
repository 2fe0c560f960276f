// Package scheme describes widget layouts and draws them from trip statistics.
//
// A scheme maps a widget size ("small", "large") to alternative layouts. A
// layout is rows of columns of slot entries; each entry names a statistic.
package scheme

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrUnknownSchemeKey is returned when no layout exists for the widget size.
var ErrUnknownSchemeKey = errors.New("unknown scheme key")

// Args are the keyword arguments of a slot entry.
type Args map[string]any

// Int returns the integer argument key, or def when it is absent.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("argument %s: %v is not an integer", key, n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("argument %s: %w", key, err)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("argument %s: unexpected type %T", key, v)
	}
}

// SlotEntry is a named slot, optionally with arguments. In JSON it is either
// a string or {"name": ..., "args": {...}}.
type SlotEntry struct {
	Name string
	Args Args
}

// Slot returns an entry without arguments.
func Slot(name string) SlotEntry {
	return SlotEntry{Name: name}
}

// SlotWithArgs returns an entry with arguments.
func SlotWithArgs(name string, args Args) SlotEntry {
	return SlotEntry{Name: name, Args: args}
}

type namedEntry struct {
	Name string `json:"name"`
	Args Args   `json:"args,omitempty"`
}

func (e *SlotEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.Name)
	}

	var n namedEntry
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("slot entry must be a string or an object with a name: %w", err)
	}
	if n.Name == "" {
		return errors.New("slot entry without name")
	}
	e.Name, e.Args = n.Name, n.Args
	return nil
}

func (e SlotEntry) MarshalJSON() ([]byte, error) {
	if len(e.Args) == 0 {
		return json.Marshal(e.Name)
	}
	return json.Marshal(namedEntry{Name: e.Name, Args: e.Args})
}

// Column is a vertical list of slot entries.
type Column []SlotEntry

// Row is a horizontal list of columns.
type Row []Column

// Layout is a vertical list of rows.
type Layout []Row

// Schemes maps widget sizes to alternative layouts.
type Schemes map[string][]Layout

// Choose picks one layout for size uniformly at random. intn defaults to
// math/rand/v2.IntN.
func (s Schemes) Choose(size string, intn func(n int) int) (Layout, error) {
	alternatives, ok := s[size]
	if !ok || len(alternatives) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchemeKey, size)
	}
	if intn == nil {
		intn = rand.IntN
	}
	return alternatives[intn(len(alternatives))], nil
}

// Parse decodes schemes from JSON.
func Parse(data []byte) (Schemes, error) {
	var s Schemes
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schemes: %w", err)
	}
	return s, nil
}
