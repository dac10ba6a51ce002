package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

func TestResolve_ReturnsCorrectSection(t *testing.T) {
	config := `
config:
  log_level: debug
  log_format: text
other:
  foo: bar
`

	loader := resolve(t.Context(), "config")
	resolver, err := loader(strings.NewReader(config))
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}

	// Verify values by creating mock flags and using Resolve
	mockFlag := &kong.Flag{Value: &kong.Value{Name: "log_level"}}
	val, err := resolver.Resolve(nil, nil, mockFlag)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val != "debug" {
		t.Errorf("expected log_level=debug, got %v", val)
	}

	mockFlag2 := &kong.Flag{Value: &kong.Value{Name: "log_format"}}
	val2, err := resolver.Resolve(nil, nil, mockFlag2)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val2 != "text" {
		t.Errorf("expected log_format=text, got %v", val2)
	}

	// Verify 'other' section values are not included
	mockFlag3 := &kong.Flag{Value: &kong.Value{Name: "foo"}}
	val3, err := resolver.Resolve(nil, nil, mockFlag3)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val3 != nil {
		t.Error("config should not contain 'foo' from 'other' section")
	}
}

func TestResolve_MissingSection(t *testing.T) {
	config := `existing: { foo: bar }`

	loader := resolve(t.Context(), "missing")
	resolver, err := loader(strings.NewReader(config))
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}

	// Verify empty config by trying to resolve a flag
	mockFlag := &kong.Flag{Value: &kong.Value{Name: "foo"}}
	val, err := resolver.Resolve(nil, nil, mockFlag)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val != nil {
		t.Error("expected nil value for missing section")
	}
}

func TestResolve_UnderscoreHyphenMapping(t *testing.T) {
	config := `config: { log_level: debug }`

	loader := resolve(t.Context(), "config")
	resolver, err := loader(strings.NewReader(config))
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}

	// Test underscore version (as stored in config)
	mockFlag := &kong.Flag{Value: &kong.Value{Name: "log_level"}}
	val, err := resolver.Resolve(nil, nil, mockFlag)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val != "debug" {
		t.Errorf("expected log_level=debug, got %v", val)
	}

	// Test hyphen version (should also work via underscore mapping)
	mockFlag2 := &kong.Flag{Value: &kong.Value{Name: "log-level"}}
	val2, err := resolver.Resolve(nil, nil, mockFlag2)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val2 != "debug" {
		t.Errorf("expected log-level=debug, got %v", val2)
	}
}

func TestResolve_NumbersBecomeStrings(t *testing.T) {
	config := `
config:
  indent: 4
  ratio: 1.5
`

	loader := resolve(t.Context(), "config")
	resolver, err := loader(strings.NewReader(config))
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}

	mockFlag := &kong.Flag{Value: &kong.Value{Name: "indent"}}
	val, err := resolver.Resolve(nil, nil, mockFlag)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val != "4" {
		t.Errorf("expected indent=%q, got %v (%T)", "4", val, val)
	}

	mockFlag2 := &kong.Flag{Value: &kong.Value{Name: "ratio"}}
	val2, err := resolver.Resolve(nil, nil, mockFlag2)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val2 != "1.5" {
		t.Errorf("expected ratio=%q, got %v (%T)", "1.5", val2, val2)
	}
}

func TestResolve_InvalidYAML(t *testing.T) {
	// Malformed input degrades to an empty config rather than failing
	// parser construction.
	loader := resolve(t.Context(), "config")
	resolver, err := loader(strings.NewReader("config: [unclosed"))
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}

	mockFlag := &kong.Flag{Value: &kong.Value{Name: "log-level"}}
	val, err := resolver.Resolve(nil, nil, mockFlag)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value from malformed config, got %v", val)
	}
}

func TestResolve_ReadError(t *testing.T) {
	errReader := &errorReader{err: bytes.ErrTooLarge}

	loader := resolve(t.Context(), "config")
	resolver, err := loader(errReader)
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}

	mockFlag := &kong.Flag{Value: &kong.Value{Name: "log-level"}}
	val, err := resolver.Resolve(nil, nil, mockFlag)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value from unreadable config, got %v", val)
	}
}

func TestResolve_Validate(t *testing.T) {
	loader := resolve(t.Context(), "config")
	resolver, err := loader(strings.NewReader("config: { log-level: debug }"))
	if err != nil {
		t.Fatalf("loader failed: %v", err)
	}

	if err := resolver.Validate(nil); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

// errorReader is a reader that always returns an error.
type errorReader struct {
	err error
}

func (e *errorReader) Read(p []byte) (n int, err error) {
	return 0, e.err
}
