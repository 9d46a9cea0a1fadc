package symbols

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
)

// WazeroExtractor reads symbols from a module compiled by wazero. Compilation
// validates the whole module, so anything wazero could not instantiate is
// rejected here.
//
// Only function and memory imports and exports are visible through wazero's
// compiled-module API; Privates and Sizes are not reported.
type WazeroExtractor struct {
	runtime wazero.Runtime
	owned   bool
}

// NewWazeroExtractor creates an extractor backed by its own interpreter
// runtime. Interpretation avoids generating machine code for modules that are
// only inspected. Call Close to release it.
func NewWazeroExtractor(ctx context.Context) *WazeroExtractor {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	return &WazeroExtractor{runtime: rt, owned: true}
}

// NewWazeroExtractorWithRuntime creates an extractor that compiles with rt.
// The caller keeps ownership of rt.
func NewWazeroExtractorWithRuntime(rt wazero.Runtime) *WazeroExtractor {
	return &WazeroExtractor{runtime: rt}
}

// Extract implements Extractor.
func (w *WazeroExtractor) Extract(code []byte, opts Options) (Symbols, error) {
	if len(code) >= 8 && binary.LittleEndian.Uint32(code[0:4]) == wasmMagic &&
		binary.LittleEndian.Uint32(code[4:8])>>16 != 0 {
		return nil, ErrComponent
	}

	ctx := context.Background()
	compiled, err := w.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}
	defer compiled.Close(ctx)

	return FromCompiled(compiled, opts), nil
}

// Close releases the runtime if the extractor created it.
func (w *WazeroExtractor) Close(ctx context.Context) error {
	if !w.owned {
		return nil
	}
	return w.runtime.Close(ctx)
}

// FromCompiled reads the function and memory imports and exports of an
// already compiled module. Imports keep wazero's order; exports are sorted by
// name since wazero reports them as maps.
func FromCompiled(compiled wazero.CompiledModule, opts Options) Symbols {
	var out Symbols

	if opts.Imports {
		for _, fn := range compiled.ImportedFunctions() {
			module, name, _ := fn.Import()
			out = append(out, Symbol{Kind: KindImport, Module: module, Name: name, Extern: ExternFunc, Index: fn.Index()})
		}
		for _, mem := range compiled.ImportedMemories() {
			module, name, _ := mem.Import()
			out = append(out, Symbol{Kind: KindImport, Module: module, Name: name, Extern: ExternMemory, Index: mem.Index()})
		}
	}

	if opts.Exports {
		exports := make(Symbols, 0)
		for name, fn := range compiled.ExportedFunctions() {
			exports = append(exports, Symbol{Kind: KindExport, Name: name, Extern: ExternFunc, Index: fn.Index()})
		}
		for name, mem := range compiled.ExportedMemories() {
			exports = append(exports, Symbol{Kind: KindExport, Name: name, Extern: ExternMemory, Index: mem.Index()})
		}
		sort.Slice(exports, func(i, j int) bool { return exports[i].Name < exports[j].Name })
		out = append(out, exports...)
	}

	return out
}

var (
	_ Extractor = Scanner{}
	_ Extractor = (*WazeroExtractor)(nil)
)
