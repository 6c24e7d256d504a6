// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Options maps operation names to argument specifications.
//
// Unlike a Go map, Options remembers insertion order: body operations are
// invoked in this order. Setting a name that is already present replaces
// its value without moving it.
//
// The zero value is an empty Options ready to use.
type Options struct {
	keys   []string
	values map[string]any
}

// NewOptions returns an empty [*Options].
func NewOptions() *Options {
	return &Options{}
}

// OptionsFromMap builds [*Options] from a map, ordering keys lexicographically.
func OptionsFromMap(m map[string]any) *Options {
	opts := NewOptions()
	for _, key := range slices.Sorted(maps.Keys(m)) {
		opts.Set(key, m[key])
	}
	return opts
}

// Set assigns value to name and returns the receiver for chaining.
func (o *Options) Set(name string, value any) *Options {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, found := o.values[name]; !found {
		o.keys = append(o.keys, name)
	}
	o.values[name] = value
	return o
}

// Get returns the value of name and whether it is present.
func (o *Options) Get(name string) (any, bool) {
	if o == nil {
		return nil, false
	}
	value, found := o.values[name]
	return value, found
}

// Has returns whether name is present.
func (o *Options) Has(name string) bool {
	_, found := o.Get(name)
	return found
}

// Delete removes name and returns whether it was present.
func (o *Options) Delete(name string) bool {
	if !o.Has(name) {
		return false
	}
	delete(o.values, name)
	o.keys = slices.DeleteFunc(o.keys, func(key string) bool { return key == name })
	return true
}

// Keys returns the names in insertion order.
func (o *Options) Keys() []string {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

// Len returns the number of names.
func (o *Options) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Clone returns a deep copy of the receiver.
//
// Nested []any, map[string]any, and [*Options] values are copied
// recursively. Any other value (funcs, pointers, typed slices) is shared
// with the original.
func (o *Options) Clone() *Options {
	out := NewOptions()
	if o == nil {
		return out
	}
	for _, key := range o.keys {
		out.Set(key, cloneValue(o.values[key]))
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for idx, elem := range v {
			out[idx] = cloneValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, elem := range v {
			out[key] = cloneValue(elem)
		}
		return out
	case *Options:
		return v.Clone()
	default:
		return value
	}
}

// errNotMapping indicates that a YAML document is not a mapping.
var errNotMapping = errors.New("declare: options document must be a mapping")

// UnmarshalYAML implements [yaml.Unmarshaler].
//
// Document key order is preserved. Duplicate keys are rejected.
func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.DocumentNode && len(value.Content) == 1 {
		value = value.Content[0]
	}
	if value.Kind != yaml.MappingNode {
		return errNotMapping
	}
	*o = Options{}
	for idx := 0; idx+1 < len(value.Content); idx += 2 {
		var name string
		if err := value.Content[idx].Decode(&name); err != nil {
			return fmt.Errorf("declare: option name at line %d: %w", value.Content[idx].Line, err)
		}
		if o.Has(name) {
			return fmt.Errorf("declare: duplicate option %q at line %d", name, value.Content[idx].Line)
		}
		var spec any
		if err := value.Content[idx+1].Decode(&spec); err != nil {
			return fmt.Errorf("declare: option %q: %w", name, err)
		}
		o.Set(name, spec)
	}
	return nil
}

// ParseOptions parses a YAML (or JSON) mapping into [*Options].
func ParseOptions(data []byte) (*Options, error) {
	opts := NewOptions()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// ParseOptionsFunc is a [Func] that parses a document using [ParseOptions].
//
// The zero value is ready to use.
type ParseOptionsFunc struct{}

var _ Func[[]byte, *Options] = ParseOptionsFunc{}

// Call implements [Func].
func (ParseOptionsFunc) Call(ctx context.Context, data []byte) (*Options, error) {
	return ParseOptions(data)
}
