package scope

import (
	"log/slog"
	"maps"
)

// HandlerChainProperty names the List property holding the render-time
// handler chain. Deferred resolution gathers it with the usual list merge,
// so local handlers run before inherited ones.
const HandlerChainProperty = "config_renderer_handlers"

// Deferred is a template bound to the scope it was rendered from. The
// binding is permanent: resolution always reads the origin's namespace and
// handler chain, no matter where the value has traveled since.
type Deferred struct {
	template string
	origin   *Scope
}

// Template returns the unexpanded template string.
func (d *Deferred) Template() string { return d.template }

// Origin returns the scope the template is bound to.
func (d *Deferred) Origin() *Scope { return d.origin }

// Render converts v into its deferred form bound to s. Strings become
// [Deferred] values, lists and maps convert element-wise, and every other
// kind passes through unchanged.
func (s *Scope) Render(v Value) Value {
	switch v.Kind {
	case KindString:
		return Value{
			Kind: KindDeferred,
			Def:  &Deferred{template: v.Str, origin: s},
		}

	case KindList:
		list := make([]Value, len(v.List))

		for i, it := range v.List {
			list[i] = s.Render(it)
		}

		return Value{Kind: KindList, List: list}

	case KindMap:
		dict := make(map[string]Value, len(v.Map))

		for key, it := range v.Map {
			dict[key] = s.Render(it)
		}

		return Value{Kind: KindMap, Map: dict}

	default:
		return v
	}
}

// GetRendered resolves a property with [Scope.Get] and converts the result
// to its deferred form.
func (s *Scope) GetRendered(name string, def Value) (Value, error) {
	v, err := s.Get(name, def)
	if err != nil {
		return Value{}, err
	}

	return s.Render(v), nil
}

// Resolve expands the template against the origin scope's current state.
//
// Each call rebuilds the namespace from scratch: the origin's string
// properties first, then every handler registered under
// [HandlerChainProperty] runs in merge order and may mutate the namespace,
// then vars overlay the result. Runtime overrides therefore always win.
// Two calls with identical scope state and vars produce identical output;
// calls bracketing a property change may not.
func (d *Deferred) Resolve(vars Vars) (string, error) {
	ns := d.origin.Namespace()

	if err := d.origin.runHandlers(vars, ns); err != nil {
		return "", err
	}

	maps.Copy(ns, vars)

	out, err := expand(d.template, ns)
	if err != nil {
		return "", WrapError(err).With(
			slog.String("template", d.template),
			slog.String("scope", d.origin.Path()),
		)
	}

	return out, nil
}

// runHandlers resolves the handler chain visible from s and invokes each
// entry with the given vars and namespace. Handlers mutate ns in place;
// their return strings are discarded.
func (s *Scope) runHandlers(vars Vars, ns Namespace) error {
	chain, err := s.Get(HandlerChainProperty, NewList())
	if err != nil {
		return err
	}

	if chain.Kind != KindList {
		return s.mismatch(HandlerChainProperty, KindList, chain.Kind)
	}

	for _, it := range chain.List {
		if it.Kind != KindHandler {
			return s.mismatch(HandlerChainProperty, KindHandler, it.Kind)
		}

		if _, err := it.Fn(s, vars, ns); err != nil {
			return WrapError(err).With(
				slog.String("property", HandlerChainProperty),
				slog.String("scope", s.Path()),
			)
		}
	}

	return nil
}
