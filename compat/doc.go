// Package compat decides whether a WebAssembly module fits the host API
// before it is instantiated.
//
// A Contract holds two name lists. SupportedImports bounds what a module may
// depend on; RequiredExports bounds what it must provide:
//
//	imports(module) ⊆ SupportedImports
//	RequiredExports ⊆ exports(module)
//
// Names are compared exactly. Signatures are not checked.
//
// Check runs the import check first and stops at the first failure. The
// verdict is one of two fixed messages, so a rejected module learns nothing
// about the host's lists:
//
//	checker, err := compat.New(compat.DefaultContract())
//	if err != nil {
//	    return err
//	}
//	switch err := checker.Check(code); {
//	case errors.Is(err, compat.ErrUnsupportedImports):
//	    // module is newer than this host
//	case errors.Is(err, compat.ErrMissingExports):
//	    // module is older than this host
//	case errors.Is(err, compat.ErrMalformedModule):
//	    // symbol table could not be read
//	}
//
// Operators who need the offending names use Diagnose.
package compat
