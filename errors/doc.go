// Package errors provides structured error types for the wasm-gate library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a human-readable detail, an optional offending value and
// the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConfig, errors.KindInvalidInput).
//		Path("contract", "supported_imports").
//		Detail("duplicate name %q", name).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ParseFailed("wasm symbols", cause)
//	err := errors.Load("compile module", cause)
//
// The admission verdicts are Errors too. Their Detail is a fixed message and never
// names the offending symbols:
//
//	err := errors.UnsupportedImports(msg)
//	errors.Is(err, &errors.Error{Phase: errors.PhaseValidate, Kind: errors.KindUnsupportedImport}) // true
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
