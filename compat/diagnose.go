package compat

import (
	"sort"

	"github.com/wippyai/wasm-gate/errors"
	"github.com/wippyai/wasm-gate/symbols"
)

// Report names the symbols behind a verdict. It is meant for operators of
// the host; the verdict returned by Check deliberately carries none of this.
type Report struct {
	Version            string   `json:"contract" yaml:"contract"`
	UnsupportedImports []string `json:"unsupported_imports,omitempty" yaml:"unsupported_imports,omitempty"`
	MissingExports     []string `json:"missing_exports,omitempty" yaml:"missing_exports,omitempty"`
}

// OK reports whether the module would be admitted.
func (r *Report) OK() bool {
	return len(r.UnsupportedImports) == 0 && len(r.MissingExports) == 0
}

// Err returns the verdict Check gives for the same module.
func (r *Report) Err() error {
	switch {
	case len(r.UnsupportedImports) > 0:
		return errors.UnsupportedImports(ExtraImportMsg)
	case len(r.MissingExports) > 0:
		return errors.MissingExports(MissingExportMsg)
	default:
		return nil
	}
}

// Diagnose extracts the symbols of code and reports every unsupported
// import and every missing export. Extraction failures are returned as for
// Check.
func (c *Checker) Diagnose(code []byte) (*Report, error) {
	syms, err := c.Extract(code)
	if err != nil {
		return nil, err
	}
	return c.DiagnoseSymbols(syms), nil
}

// DiagnoseSymbols builds a Report from an extracted symbol table. Names are
// sorted and de-duplicated.
func (c *Checker) DiagnoseSymbols(syms symbols.Symbols) *Report {
	r := &Report{Version: c.contract.Version}

	unsupported := make(map[string]struct{})
	exports := make(map[string]struct{})
	for _, s := range syms {
		if !callable(s) {
			continue
		}
		switch s.Kind {
		case symbols.KindImport:
			if _, ok := c.supported[s.Name]; !ok {
				unsupported[s.Name] = struct{}{}
			}
		case symbols.KindExport:
			exports[s.Name] = struct{}{}
		}
	}
	for name := range unsupported {
		r.UnsupportedImports = append(r.UnsupportedImports, name)
	}
	sort.Strings(r.UnsupportedImports)

	for _, name := range c.required {
		if _, ok := exports[name]; !ok {
			r.MissingExports = append(r.MissingExports, name)
		}
	}
	sort.Strings(r.MissingExports)

	return r
}
