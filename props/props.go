// Package props holds the flat key/value configuration handed to the compute
// engine at startup. Values are strings; typed accessors convert on read.
package props

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/golobby/cast"
)

var (
	// ErrMissingProperty is returned when a required property has no value.
	ErrMissingProperty = errors.New("missing property")
	// ErrInvalidProperty is returned when a property cannot be converted.
	ErrInvalidProperty = errors.New("invalid property")
)

// Feeder writes the properties of a configuration source into dst.
type Feeder interface {
	Feed(dst map[string]string) error
}

// Props is an immutable set of properties.
type Props struct {
	values map[string]string
}

// New copies values into a new Props. Keys and values are trimmed.
func New(values map[string]string) *Props {
	p := &Props{values: make(map[string]string, len(values))}
	for k, v := range values {
		p.values[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return p
}

// Load feeds every source in order, later sources overriding earlier ones.
func Load(feeders ...Feeder) (*Props, error) {
	values := make(map[string]string)
	for i, f := range feeders {
		if err := f.Feed(values); err != nil {
			return nil, fmt.Errorf("feeder %d (%T): %w", i, f, err)
		}
	}
	return New(values), nil
}

// With returns a copy of p with the given key/value pairs overridden.
func (p *Props) With(kv ...string) *Props {
	values := p.Map()
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return New(values)
}

// Value returns the value of key. Blank values are reported as absent.
func (p *Props) Value(key string) (string, bool) {
	v, ok := p.values[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ValueOrDefault returns the value of key, or def when it is absent.
func (p *Props) ValueOrDefault(key, def string) string {
	if v, ok := p.Value(key); ok {
		return v
	}
	return def
}

// NonNull returns the value of key or ErrMissingProperty.
func (p *Props) NonNull(key string) (string, error) {
	v, ok := p.Value(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingProperty, key)
	}
	return v, nil
}

// Bool returns key as a bool, or def when it is absent.
func (p *Props) Bool(key string, def bool) (bool, error) {
	v, err := convert[bool](p, key)
	if errors.Is(err, ErrMissingProperty) {
		return def, nil
	}
	return v, err
}

// Int returns key as an int, or def when it is absent.
func (p *Props) Int(key string, def int) (int, error) {
	v, err := convert[int](p, key)
	if errors.Is(err, ErrMissingProperty) {
		return def, nil
	}
	return v, err
}

// Duration returns key as a duration, or def when it is absent. Values are
// Go durations ("30s"); a bare integer is read as milliseconds.
func (p *Props) Duration(key string, def time.Duration) (time.Duration, error) {
	raw, ok := p.Value(key)
	if !ok {
		return def, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	ms, err := convert[int64](p, key)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// List splits a comma separated value, dropping blank entries.
func (p *Props) List(key string) []string {
	raw, ok := p.Value(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Keys returns every key, sorted.
func (p *Props) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Map returns a copy of the properties.
func (p *Props) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

func convert[T any](p *Props, key string) (T, error) {
	var zero T
	raw, err := p.NonNull(key)
	if err != nil {
		return zero, err
	}
	v, err := cast.FromType(raw, reflect.TypeOf(zero))
	if err != nil {
		return zero, fmt.Errorf("%w: %s=%q: %w", ErrInvalidProperty, key, raw, err)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s=%q is %T", ErrInvalidProperty, key, raw, v)
	}
	return typed, nil
}
