// Package wasmgate decides whether a compiled WebAssembly contract can run
// against the host API this node provides.
//
// A module passes when every function it imports is provided by the host
// and every function the host calls into is exported. Anything else is
// refused with one of two fixed messages, chosen by the first check that
// fails:
//
//	WASM requires unsupported imports - version too new?
//	WASM doesn't have required exports - version too old?
//
// # Architecture Overview
//
//	wasmgate/            CheckAPICompatibility against the default contract
//	├── compat/          Contract, Checker and operator diagnostics
//	├── symbols/         Import/export extraction (binary scanner, wazero)
//	├── runtime/         Admission-gated wazero loader with verdict cache
//	├── config/          YAML/env configuration (koanf)
//	├── watch/           Directory watcher that re-checks changed modules
//	├── errors/          Structured error types
//	└── cmd/wasmcheck/   Operator CLI
//
// # Quick Start
//
//	if err := wasmgate.CheckAPICompatibility(code); err != nil {
//	    return err
//	}
//
// Callers that need a different contract build a compat.Checker:
//
//	checker, err := compat.New(compat.Contract{
//	    Version:          "0.6",
//	    SupportedImports: []string{"c_read", "c_write"},
//	    RequiredExports:  []string{"init", "handle"},
//	})
//
// # Error Handling
//
// Verdicts are *errors.Error values and match the compat sentinels:
//
//	err := wasmgate.CheckAPICompatibility(code)
//	switch {
//	case errors.Is(err, compat.ErrUnsupportedImports):
//	case errors.Is(err, compat.ErrMissingExports):
//	case errors.Is(err, compat.ErrMalformedModule):
//	}
package wasmgate
