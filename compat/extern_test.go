package compat

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/wasm-gate/internal/wasmtest"
	"github.com/wippyai/wasm-gate/symbols"
)

// withRequired adds a function export for every required name except skip.
func withRequired(b *wasmtest.Builder, skip string) *wasmtest.Builder {
	for _, name := range DefaultContract().RequiredExports {
		if name != skip {
			b.ExportFunc(name)
		}
	}
	return b
}

func TestCheckCountsFunctionsOnly(t *testing.T) {
	ctx := context.Background()
	wz := symbols.NewWazeroExtractor(ctx)
	defer wz.Close(ctx)

	extractors := map[string]symbols.Extractor{
		"scanner": symbols.Scanner{},
		"wazero":  wz,
	}

	tests := []struct {
		name string
		code []byte
		want error
	}{
		{
			name: "imported_memory",
			code: withRequired(wasmtest.New().
				ImportMemory("env", "memory", 1).
				ImportFunc("env", "read_db"), "").
				Bytes(),
		},
		{
			name: "imported_global",
			code: withRequired(wasmtest.New().
				ImportGlobal("env", "__stack_pointer").
				ImportFunc("env", "read_db"), "").
				Memory(1).
				Bytes(),
		},
		{
			name: "required_name_exported_as_memory",
			code: withRequired(wasmtest.New(), "deallocate").
				Memory(1).
				ExportMemory("deallocate").
				Bytes(),
			want: ErrMissingExports,
		},
		{
			name: "required_name_exported_as_global",
			code: withRequired(wasmtest.New().
				ImportGlobal("env", "heap_base"), "deallocate").
				ExportGlobal("deallocate").
				Bytes(),
			want: ErrMissingExports,
		},
		{
			name: "unsupported_function_beside_memory",
			code: withRequired(wasmtest.New().
				ImportMemory("env", "memory", 1).
				ImportFunc("env", "legacy_read"), "").
				Bytes(),
			want: ErrUnsupportedImports,
		},
	}

	for _, tt := range tests {
		for name, ex := range extractors {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				checker, err := New(DefaultContract(), WithExtractor(ex))
				if err != nil {
					t.Fatalf("New: %v", err)
				}

				err = checker.Check(tt.code)
				if tt.want == nil {
					if err != nil {
						t.Fatalf("Check: %v", err)
					}
				} else if !errors.Is(err, tt.want) {
					t.Fatalf("err = %v, want %v", err, tt.want)
				}

				report, err := checker.Diagnose(tt.code)
				if err != nil {
					t.Fatalf("Diagnose: %v", err)
				}
				if report.OK() != (tt.want == nil) {
					t.Errorf("report = %+v, want OK = %v", report, tt.want == nil)
				}
			})
		}
	}
}

func TestExtractDropsPrivateRecords(t *testing.T) {
	all := symbols.Symbols{
		{Kind: symbols.KindImport, Module: "env", Name: "read_db"},
		{Kind: symbols.KindPrivate, Name: "helper", Index: 1},
		{Kind: symbols.KindSize, Name: "helper", Index: 1, Size: 2},
	}
	checker, err := New(DefaultContract(), WithExtractor(&stubExtractor{syms: all}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := checker.Extract(nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 || got[0].Kind != symbols.KindImport {
		t.Errorf("Extract = %v, want the import only", got)
	}
}
