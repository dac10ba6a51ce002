package scope

import (
	"log/slog"
	"strings"
)

// Interpolate resolves v against the string properties visible from s.
//
// Strings have their "{name}" placeholders substituted from
// [Scope.Namespace]; an unknown placeholder fails hard with ErrMissingKey,
// never a silent default. Handler values are
// invoked immediately and their result becomes a string value. Lists and
// maps interpolate element-wise, preserving structure. Remaining kinds are
// returned unchanged.
func (s *Scope) Interpolate(v Value) (Value, error) {
	return s.interpolate(v, nil)
}

// GetInterpolated resolves a property with [Scope.Get] and interpolates the
// result.
func (s *Scope) GetInterpolated(name string, def Value) (Value, error) {
	v, err := s.Get(name, def)
	if err != nil {
		return Value{}, err
	}

	return s.Interpolate(v)
}

// interpolate dispatches on kind, computing the namespace at most once and
// sharing it across nested elements.
func (s *Scope) interpolate(v Value, ns Namespace) (Value, error) {
	switch v.Kind {
	case KindString:
		if ns == nil {
			ns = s.Namespace()
		}

		out, err := expand(v.Str, ns)
		if err != nil {
			return Value{}, WrapError(err).With(
				slog.String("template", v.Str),
				slog.String("scope", s.Path()),
			)
		}

		return NewString(out), nil

	case KindHandler:
		if ns == nil {
			ns = s.Namespace()
		}

		out, err := v.Fn(s, nil, ns)
		if err != nil {
			return Value{}, WrapError(err).With(
				slog.String("scope", s.Path()),
			)
		}

		return NewString(out), nil

	case KindList:
		list := make([]Value, len(v.List))

		for i, it := range v.List {
			val, err := s.interpolate(it, ns)
			if err != nil {
				return Value{}, err
			}

			list[i] = val
		}

		return Value{Kind: KindList, List: list}, nil

	case KindMap:
		dict := make(map[string]Value, len(v.Map))

		for key, it := range v.Map {
			val, err := s.interpolate(it, ns)
			if err != nil {
				return Value{}, err
			}

			dict[key] = val
		}

		return Value{Kind: KindMap, Map: dict}, nil

	default:
		return v, nil
	}
}

// expand substitutes "{name}" placeholders in tmpl with entries from ns.
// Literal braces are written "{{" and "}}". An unterminated or empty
// placeholder fails with ErrTemplateSyntax; a placeholder missing from ns
// fails with ErrMissingKey.
func expand(tmpl string, ns Namespace) (string, error) {
	var b strings.Builder

	b.Grow(len(tmpl))

	for i := 0; i < len(tmpl); {
		switch c := tmpl[i]; c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')

				i += 2

				continue
			}

			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", ErrTemplateSyntax.With(
					slog.String("reason", "unterminated placeholder"),
				)
			}

			name := tmpl[i+1 : i+end]
			if name == "" {
				return "", ErrTemplateSyntax.With(
					slog.String("reason", "empty placeholder"),
				)
			}

			val, ok := ns[name]
			if !ok {
				return "", ErrMissingKey.With(slog.String("key", name))
			}

			b.WriteString(val)

			i += end + 1

		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')

				i += 2

				continue
			}

			return "", ErrTemplateSyntax.With(
				slog.String("reason", "unmatched closing brace"),
			)

		default:
			b.WriteByte(c)

			i++
		}
	}

	return b.String(), nil
}
