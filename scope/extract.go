package scope

import (
	"log/slog"
	"maps"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Bundle holds properties extracted from a scope, keyed by their names with
// the shared prefix stripped.
type Bundle map[string]Value

// ExtractOption adjusts how Extract resolves individual properties.
type ExtractOption func(*extractor)

type extractor struct {
	raw      map[string]struct{}
	rendered map[string]struct{}
}

// WithRaw names properties, by their full unstripped names, to copy as-is
// with no interpolation.
func WithRaw(names ...string) ExtractOption {
	return func(x *extractor) {
		for _, name := range names {
			x.raw[name] = struct{}{}
		}
	}
}

// WithRendered names properties, by their full unstripped names, to extract
// in deferred form for later resolution.
func WithRendered(names ...string) ExtractOption {
	return func(x *extractor) {
		for _, name := range names {
			x.rendered[name] = struct{}{}
		}
	}
}

// Extract gathers every property visible from s whose name begins with one
// of the given prefixes followed by "_". Bundle keys are the matched names
// with that lead stripped. Prefixes process in caller order, names within a
// prefix in sorted order. Values interpolate unless named by an option.
//
// Two prefixes producing the same stripped key must agree: equal values
// coexist silently, differing values fail with ErrDuplicateKey naming both
// source properties.
func (s *Scope) Extract(prefixes []string, opts ...ExtractOption) (Bundle, error) {
	x := &extractor{
		raw:      make(map[string]struct{}),
		rendered: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(x)
	}

	bundle := make(Bundle)
	source := make(map[string]string)

	for _, prefix := range prefixes {
		for _, name := range s.NamesWithPrefix(prefix) {
			val, err := x.resolve(s, name)
			if err != nil {
				return nil, err
			}

			key := strings.TrimPrefix(name, prefix+prefixSep)

			if prev, ok := bundle[key]; ok {
				if prev.Equal(val) {
					continue
				}

				return nil, ErrDuplicateKey.With(
					slog.String("key", key),
					slog.String("property", name),
					slog.String("conflict", source[key]),
					slog.String("scope", s.Path()),
				)
			}

			bundle[key] = val
			source[key] = name
		}
	}

	return bundle, nil
}

func (x *extractor) resolve(s *Scope, name string) (Value, error) {
	if _, ok := x.raw[name]; ok {
		return s.Get(name, Value{})
	}

	if _, ok := x.rendered[name]; ok {
		return s.GetRendered(name, Value{})
	}

	return s.GetInterpolated(name, Value{})
}

// Require removes the named entries from the bundle and returns their
// values in argument order. A name with no entry fails with
// ErrMissingRequired.
func (b Bundle) Require(names ...string) ([]Value, error) {
	vals := make([]Value, 0, len(names))

	for _, name := range names {
		val, ok := b[name]
		if !ok {
			return nil, ErrMissingRequired.With(slog.String("key", name))
		}

		delete(b, name)

		vals = append(vals, val)
	}

	return vals, nil
}

// Merge overlays extra onto b in place, extra winning collisions, and
// returns b.
func (b Bundle) Merge(extra Bundle) Bundle {
	maps.Copy(b, extra)

	return b
}

// Decode unpacks the bundle into target, typically a pointer to a struct
// with mapstructure tags. Values convert to their native Go forms first, so
// deferred entries decode as their template strings.
func (b Bundle) Decode(target any) error {
	native := make(map[string]any, len(b))

	for key, val := range b {
		native[key] = val.ToNative()
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return WrapError(err)
	}

	if err := dec.Decode(native); err != nil {
		return WrapError(err)
	}

	return nil
}
