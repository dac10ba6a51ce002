// Package cli contains the command line interface for strata.
//
// # Usage
//
// Manifests are named with --source and composed by the default build
// command:
//
//	strata --source base.yaml --source site.yaml
//
// Subcommands resolve individual properties, collect prefixed bundles,
// emit environment assignments, rewrite sources canonically, or open an
// interactive explorer:
//
//	strata get image --scope deploy/app
//	strata extract docker_ --scope deploy
//	strata export --scope deploy/app --prefix APP
//	strata fmt --source base.yaml --check
//	strata repl --source base.yaml
//
// # Configuration Loader
//
// Flag defaults are read from the YAML config file in the user's config
// directory. The [kong.ConfigurationLoader] returned by [resolve] applies
// the file's top-level "config" mapping, with command-line flags taking
// precedence.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (json, text)
//   - --log-time-layout: Set timestamp format (RFC3339, RFC3339Nano, etc.)
//   - --log-caller: Include caller information in log output
//   - --log-pretty: Enable colorized pretty printing
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default:
//     ~/.cache/strata/pprof)
//
// # Examples
//
//	# Debug logging with CPU profiling
//	strata --log-level=debug --pprof-mode=cpu
//
//	# Text format with heap profiling
//	strata --log-format=text --pprof-mode=heap
package cli
