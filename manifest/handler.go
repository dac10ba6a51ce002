package manifest

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ardnew/strata/scope"
)

// compileHandler compiles a manifest handler entry into a [scope.Handler].
//
// The program environment exposes three variables:
//
//	name: the handler's declared name
//	ns:   the substitution namespace at invocation time
//	vars: caller-supplied overrides (empty during interpolation)
//
// A program returning a map merges its stringified entries into the
// namespace. A program returning a string yields that string as the
// handler's value. Any other result type fails with
// [scope.ErrTypeMismatch].
func compileHandler(h Handler) (scope.Handler, error) {
	program, err := expr.Compile(h.Expr, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, ErrCompileHandler.Wrap(err).
			With(
				slog.String("handler", h.Name),
				slog.String("source", h.Expr),
			)
	}

	return func(s *scope.Scope, vars scope.Vars, ns scope.Namespace) (string, error) {
		// Copies, so a program can only reach the namespace through its
		// returned map. Missing keys index as nil, which makes the ??
		// operator usable for defaults.
		env := map[string]any{
			"name": h.Name,
			"ns":   anyMap(ns),
			"vars": anyMap(vars),
		}

		out, err := vm.Run(program, env)
		if err != nil {
			return "", ErrRunHandler.Wrap(err).
				With(
					slog.String("handler", h.Name),
					slog.String("scope", s.Path()),
				)
		}

		switch res := out.(type) {
		case string:
			return res, nil

		case map[string]any:
			for key, val := range res {
				ns[key] = stringify(val)
			}

			return "", nil

		default:
			return "", scope.ErrTypeMismatch.With(
				slog.String("handler", h.Name),
				slog.String("scope", s.Path()),
				slog.String("result", fmt.Sprintf("%T", out)),
			)
		}
	}, nil
}

// anyMap widens a string-valued map for use as an expr environment value.
func anyMap[M ~map[string]string](m M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// stringify renders a handler result entry as a namespace string.
func stringify(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
