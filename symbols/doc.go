// Package symbols extracts the import and export tables of core WebAssembly
// modules.
//
// Two extractors are provided:
//
//	Scanner          walks the binary section by section; only the import,
//	                 export, function, code and name sections are decoded
//	WazeroExtractor  compiles the module with wazero, so the module is fully
//	                 validated before any symbol is reported
//
// The Scanner is cheap and tolerant of function bodies it does not need to
// read. The WazeroExtractor rejects anything wazero would refuse to
// instantiate, but it only sees function and memory imports and exports.
//
// Usage:
//
//	syms, err := symbols.Extract(code, symbols.PublicOptions)
//	if err != nil {
//	    return err
//	}
//	for _, name := range syms.Imports() {
//	    fmt.Println(name)
//	}
//
// Symbols carries four record kinds. Only KindImport and KindExport are
// meaningful to admission checks; KindPrivate and KindSize exist for listing
// tools and are filtered out by Symbols.Public.
package symbols
