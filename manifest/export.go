package manifest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/ardnew/mung"

	"github.com/ardnew/strata/scope"
)

// ExportOption configures [ExportEnv] output.
type ExportOption func(*exporter)

type exporter struct {
	prefix string
	delim  string
}

// WithPrefix prepends prefix (and a separating underscore) to every
// exported variable name.
func WithPrefix(prefix string) ExportOption {
	return func(x *exporter) { x.prefix = prefix }
}

// WithDelim overrides the list-joining delimiter, which defaults to the
// platform's path list separator.
func WithDelim(delim string) ExportOption {
	return func(x *exporter) { x.delim = delim }
}

// ExportEnv writes the properties visible from s as environment variable
// assignments, one NAME=value per line in name order. Values interpolate
// against the static namespace, falling back to one render pass with no
// overrides for placeholders only the handler chain supplies.
//
// Names are uppercased with non-identifier runes replaced by underscores.
// Scalars format with strconv. Lists join their scalar elements,
// deduplicated, with the configured delimiter. Maps expand to one
// NAME_KEY entry per key. Null, deferred, and handler values are omitted,
// as is the handler-chain property.
func ExportEnv(w io.Writer, s *scope.Scope, opts ...ExportOption) error {
	x := exporter{delim: string(os.PathListSeparator)}
	for _, opt := range opts {
		opt(&x)
	}

	for _, name := range s.Names() {
		if name == scope.HandlerChainProperty {
			continue
		}

		val, err := s.GetInterpolated(name, scope.Value{})

		// A placeholder only the handler chain can satisfy resolves
		// through a render pass with no overrides.
		if errors.Is(err, scope.ErrMissingKey) {
			val, err = renderFallback(s, name)
		}

		if err != nil {
			return WrapError(err).With(
				slog.String("property", name),
				slog.String("scope", s.Path()),
			)
		}

		if err := x.write(w, name, val); err != nil {
			return err
		}
	}

	return nil
}

// renderFallback resolves name through the deferred-rendering pipeline
// and converts the result back to a value. Values with no data rendition
// come back null, which the exporter omits.
func renderFallback(s *scope.Scope, name string) (scope.Value, error) {
	native, skip, err := resolveRendered(s, name, scope.Vars{})
	if err != nil {
		return scope.Value{}, err
	}

	if skip {
		return scope.Value{}, nil
	}

	return scope.FromNative(native)
}

func (x *exporter) write(w io.Writer, name string, v scope.Value) error {
	switch v.Kind {
	case scope.KindString:
		return x.assign(w, name, v.Str)

	case scope.KindInt:
		return x.assign(w, name, strconv.FormatInt(v.Int, 10))

	case scope.KindBool:
		return x.assign(w, name, strconv.FormatBool(v.Bool))

	case scope.KindList:
		items := make([]string, 0, len(v.List))

		for _, it := range v.List {
			if s, ok := scalarString(it); ok && s != "" {
				items = append(items, s)
			}
		}

		joined := mung.Make(
			mung.WithSubjectItems(items...),
			mung.WithDelim(x.delim),
		).String()

		return x.assign(w, name, joined)

	case scope.KindMap:
		for _, key := range slices.Sorted(maps.Keys(v.Map)) {
			if err := x.write(w, name+"_"+key, v.Map[key]); err != nil {
				return err
			}
		}

		return nil

	default:
		// Null, deferred, and handler values have no environment form.
		return nil
	}
}

func (x *exporter) assign(w io.Writer, name, value string) error {
	_, err := fmt.Fprintf(w, "%s=%s\n", x.varName(name), value)

	return err
}

// varName converts a property name to its environment variable form.
func (x *exporter) varName(name string) string {
	if x.prefix != "" {
		name = x.prefix + "_" + name
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		default:
			return '_'
		}
	}, name)
}

// scalarString formats a scalar value for list joining.
func scalarString(v scope.Value) (string, bool) {
	switch v.Kind {
	case scope.KindString:
		return v.Str, true
	case scope.KindInt:
		return strconv.FormatInt(v.Int, 10), true
	case scope.KindBool:
		return strconv.FormatBool(v.Bool), true
	default:
		return "", false
	}
}
