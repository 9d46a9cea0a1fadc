package compat

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-gate/errors"
	"github.com/wippyai/wasm-gate/symbols"
)

// Fixed verdict messages. They never name the offending symbols.
const (
	ExtraImportMsg   = "WASM requires unsupported imports - version too new?"
	MissingExportMsg = "WASM doesn't have required exports - version too old?"
)

// Sentinels for errors.Is. Verdicts returned by Check are fresh values that
// match these by phase and kind.
var (
	ErrUnsupportedImports = errors.UnsupportedImports(ExtraImportMsg)
	ErrMissingExports     = errors.MissingExports(MissingExportMsg)
	ErrMalformedModule    = &errors.Error{Phase: errors.PhaseParse, Kind: errors.KindInvalidData}
)

// Checker admits or rejects modules against a fixed Contract.
// It holds no mutable state and is safe for concurrent use.
type Checker struct {
	contract  Contract
	supported map[string]struct{}
	required  []string
	extractor symbols.Extractor
	logger    *zap.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithExtractor replaces the default symbols.Scanner.
func WithExtractor(e symbols.Extractor) Option {
	return func(c *Checker) {
		if e != nil {
			c.extractor = e
		}
	}
}

// WithLogger sets the logger for verdicts. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Checker for contract. The contract is validated and copied,
// so later changes to the caller's slices have no effect.
func New(contract Contract, opts ...Option) (*Checker, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}

	c := &Checker{
		contract:  contract.Clone(),
		extractor: symbols.Scanner{},
		logger:    Logger(),
	}
	c.supported = toSet(c.contract.SupportedImports)
	c.required = c.contract.RequiredExports

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MustDefault returns a Checker for DefaultContract.
func MustDefault() *Checker {
	c, err := New(DefaultContract())
	if err != nil {
		panic(err)
	}
	return c
}

// Contract returns a copy of the checker's contract.
func (c *Checker) Contract() Contract {
	return c.contract.Clone()
}

// Version returns the contract version the checker admits against.
func (c *Checker) Version() string {
	return c.contract.Version
}

// Extract reads the public symbols of code with the checker's extractor.
// Extraction failures are wrapped as ErrMalformedModule.
func (c *Checker) Extract(code []byte) (symbols.Symbols, error) {
	syms, err := c.extractor.Extract(code, symbols.PublicOptions)
	if err != nil {
		return nil, errors.ParseFailed("wasm symbols", err)
	}
	return syms.Public(), nil
}

// Check decides whether code may be loaded. It returns nil, or one of
// ErrMalformedModule, ErrUnsupportedImports and ErrMissingExports (matched
// with errors.Is). Imports are checked before exports and the first failing
// check is the only one reported.
func (c *Checker) Check(code []byte) error {
	syms, err := c.Extract(code)
	if err != nil {
		c.logger.Info("module rejected",
			zap.String("contract", c.contract.Version),
			zap.String("reason", string(errors.KindInvalidData)),
			zap.Error(err))
		return err
	}
	return c.CheckSymbols(syms)
}

// CheckSymbols runs the import and export checks on an extracted symbol table.
func (c *Checker) CheckSymbols(syms symbols.Symbols) error {
	var verdict *errors.Error
	switch {
	case !importsSatisfied(syms, c.supported):
		verdict = errors.UnsupportedImports(ExtraImportMsg)
	case !hasAllExports(syms, c.required):
		verdict = errors.MissingExports(MissingExportMsg)
	default:
		c.logger.Debug("module admitted",
			zap.String("contract", c.contract.Version),
			zap.Int("symbols", len(syms)))
		return nil
	}

	c.logger.Info("module rejected",
		zap.String("contract", c.contract.Version),
		zap.String("reason", string(verdict.Kind)))
	return verdict
}

// Only function imports and exports take part in admission. Memories,
// tables, globals and tags are linked by the host runtime, not called
// through the host API, and not every extractor can see them.
func callable(s symbols.Symbol) bool {
	return s.Extern == symbols.ExternFunc
}

// ImportsSatisfied reports whether every function import of syms is in allowed.
// Allowing more than the module imports is fine; a module without imports
// always passes.
func ImportsSatisfied(syms symbols.Symbols, allowed []string) bool {
	return importsSatisfied(syms, toSet(allowed))
}

// HasAllExports reports whether every name in required is exported by syms
// as a function.
// Extra exports are fine; an empty required list always passes.
func HasAllExports(syms symbols.Symbols, required []string) bool {
	return hasAllExports(syms, required)
}

func importsSatisfied(syms symbols.Symbols, allowed map[string]struct{}) bool {
	for _, s := range syms {
		if s.Kind != symbols.KindImport || !callable(s) {
			continue
		}
		if _, ok := allowed[s.Name]; !ok {
			return false
		}
	}
	return true
}

func hasAllExports(syms symbols.Symbols, required []string) bool {
	if len(required) == 0 {
		return true
	}
	exports := make(map[string]struct{}, len(syms))
	for _, s := range syms {
		if s.Kind == symbols.KindExport && callable(s) {
			exports[s.Name] = struct{}{}
		}
	}
	for _, name := range required {
		if _, ok := exports[name]; !ok {
			return false
		}
	}
	return true
}
