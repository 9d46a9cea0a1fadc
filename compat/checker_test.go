package compat

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	gateerrors "github.com/wippyai/wasm-gate/errors"
	"github.com/wippyai/wasm-gate/internal/wasmtest"
	"github.com/wippyai/wasm-gate/symbols"
)

func mustExtract(t *testing.T, code []byte) symbols.Symbols {
	t.Helper()
	syms, err := symbols.Extract(code, symbols.PublicOptions)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return syms
}

func syms(imports, exports []string) symbols.Symbols {
	var out symbols.Symbols
	for _, name := range imports {
		out = append(out, symbols.Symbol{Kind: symbols.KindImport, Module: "env", Name: name})
	}
	for _, name := range exports {
		out = append(out, symbols.Symbol{Kind: symbols.KindExport, Name: name})
	}
	return out
}

func TestImportsSatisfied(t *testing.T) {
	s := mustExtract(t, wasmtest.Contract06())

	// module needs more than we provide
	if ImportsSatisfied(s, []string{"c_read", "c_write"}) {
		t.Error("subset of the module's imports must not satisfy it")
	}

	// exact match
	if !ImportsSatisfied(s, []string{"c_read", "c_write", "c_canonical_address", "c_human_address"}) {
		t.Error("exact match must satisfy")
	}

	// we provide more
	if !ImportsSatisfied(s, []string{"c_read", "c_write", "c_canonical_address", "c_human_address", "future_function"}) {
		t.Error("superset must satisfy")
	}
}

func TestHasAllExports(t *testing.T) {
	s := mustExtract(t, wasmtest.Contract06())

	if !HasAllExports(s, []string{"init", "handle", "allocate"}) {
		t.Error("subset of exports must pass")
	}
	if !HasAllExports(s, []string{"query", "init", "handle", "allocate", "deallocate", "cosmwasm_api_0_6"}) {
		t.Error("exact match must pass")
	}
	if HasAllExports(s, []string{"init", "handle", "extra"}) {
		t.Error("missing export must fail")
	}
}

func TestContainmentProperties(t *testing.T) {
	tests := []struct {
		name        string
		syms        symbols.Symbols
		allowed     []string
		required    []string
		wantImports bool
		wantExports bool
	}{
		{
			name:        "superset_allowed",
			syms:        syms([]string{"a"}, []string{"x"}),
			allowed:     []string{"a", "b", "c"},
			required:    []string{"x"},
			wantImports: true,
			wantExports: true,
		},
		{
			name:        "import_violation",
			syms:        syms([]string{"a", "z"}, nil),
			allowed:     []string{"a", "b"},
			wantImports: false,
			wantExports: true,
		},
		{
			name:        "extra_exports_ok",
			syms:        syms(nil, []string{"x", "y", "z"}),
			required:    []string{"y"},
			wantImports: true,
			wantExports: true,
		},
		{
			name:        "export_violation",
			syms:        syms(nil, []string{"x"}),
			required:    []string{"x", "y"},
			wantImports: true,
			wantExports: false,
		},
		{
			name:        "empty_required",
			syms:        syms([]string{"a"}, nil),
			allowed:     []string{"a"},
			required:    nil,
			wantImports: true,
			wantExports: true,
		},
		{
			name:        "empty_everything",
			syms:        nil,
			wantImports: true,
			wantExports: true,
		},
		{
			name:        "case_sensitive",
			syms:        syms([]string{"Read_DB"}, []string{"INIT"}),
			allowed:     []string{"read_db"},
			required:    []string{"init"},
			wantImports: false,
			wantExports: false,
		},
		{
			name:        "duplicates_irrelevant",
			syms:        syms([]string{"a", "a", "a"}, []string{"x", "x"}),
			allowed:     []string{"a"},
			required:    []string{"x", "x"},
			wantImports: true,
			wantExports: true,
		},
		{
			name: "ignores_private_and_size",
			syms: symbols.Symbols{
				{Kind: symbols.KindPrivate, Name: "secret"},
				{Kind: symbols.KindSize, Name: "init", Size: 10},
			},
			allowed:     nil,
			required:    []string{"init"},
			wantImports: true,
			wantExports: false,
		},
		{
			name: "import_name_not_an_export",
			syms: symbols.Symbols{
				{Kind: symbols.KindImport, Name: "init"},
			},
			allowed:     []string{"init"},
			required:    []string{"init"},
			wantImports: true,
			wantExports: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImportsSatisfied(tt.syms, tt.allowed); got != tt.wantImports {
				t.Errorf("ImportsSatisfied = %v, want %v", got, tt.wantImports)
			}
			if got := HasAllExports(tt.syms, tt.required); got != tt.wantExports {
				t.Errorf("HasAllExports = %v, want %v", got, tt.wantExports)
			}
		})
	}
}

func TestContainmentOrderIndependent(t *testing.T) {
	base := syms(
		[]string{"read_db", "write_db", "humanize_address"},
		[]string{"query", "init", "handle", "allocate", "deallocate", "cosmwasm_api_0_6", "extra"},
	)
	contract := DefaultContract()
	wantImports := ImportsSatisfied(base, contract.SupportedImports)
	wantExports := HasAllExports(base, contract.RequiredExports)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append(symbols.Symbols(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if ImportsSatisfied(shuffled, contract.SupportedImports) != wantImports {
			t.Fatalf("import check depends on order: %v", shuffled)
		}
		if HasAllExports(shuffled, contract.RequiredExports) != wantExports {
			t.Fatalf("export check depends on order: %v", shuffled)
		}
	}
}

func TestCheckVerdicts(t *testing.T) {
	required := []string{"query", "init", "handle", "allocate", "deallocate", "cosmwasm_api_0_6"}

	tests := []struct {
		name    string
		code    []byte
		wantErr error
		wantMsg string
	}{
		{
			name: "exact_imports_all_exports",
			code: wasmtest.Contract07(),
		},
		{
			name:    "extra_import",
			code:    wasmtest.Module([]string{"read_db", "legacy_read"}, required),
			wantErr: ErrUnsupportedImports,
			wantMsg: ExtraImportMsg,
		},
		{
			name:    "missing_deallocate",
			code:    wasmtest.Module([]string{"read_db", "write_db"}, []string{"query", "init", "handle", "allocate", "cosmwasm_api_0_6"}),
			wantErr: ErrMissingExports,
			wantMsg: MissingExportMsg,
		},
		{
			name: "no_imports_exact_exports",
			code: wasmtest.Module(nil, required),
		},
		{
			name:    "both_fail_reports_imports",
			code:    wasmtest.Module([]string{"legacy_read"}, []string{"init"}),
			wantErr: ErrUnsupportedImports,
			wantMsg: ExtraImportMsg,
		},
		{
			name:    "old_contract",
			code:    wasmtest.Contract06(),
			wantErr: ErrUnsupportedImports,
			wantMsg: ExtraImportMsg,
		},
		{
			name: "add_one_only",
			code: wasmtest.New().ExportFunc("add_one").Bytes(),
			// no imports, so the export check decides
			wantErr: ErrMissingExports,
			wantMsg: MissingExportMsg,
		},
	}

	checker := MustDefault()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checker.Check(tt.code)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Check: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var ge *gateerrors.Error
			if !errors.As(err, &ge) {
				t.Fatalf("expected *errors.Error, got %T", err)
			}
			if ge.Detail != tt.wantMsg {
				t.Errorf("Detail = %q, want %q", ge.Detail, tt.wantMsg)
			}
		})
	}
}

func TestCheckMalformed(t *testing.T) {
	checker := MustDefault()

	for name, code := range map[string][]byte{
		"garbage":   []byte("definitely not wasm"),
		"empty":     nil,
		"component": wasmtest.New().Version(0x0001000d).Bytes(),
		"truncated": wasmtest.Contract07()[:30],
	} {
		t.Run(name, func(t *testing.T) {
			err := checker.Check(code)
			if !errors.Is(err, ErrMalformedModule) {
				t.Fatalf("err = %v, want ErrMalformedModule", err)
			}
			if errors.Is(err, ErrUnsupportedImports) || errors.Is(err, ErrMissingExports) {
				t.Error("malformed input must not look like a compatibility verdict")
			}
			if errors.Unwrap(err) == nil {
				t.Error("extractor error should be preserved as cause")
			}
		})
	}
}

func TestCheckVerdictCarriesNoNames(t *testing.T) {
	err := MustDefault().Check(wasmtest.Module([]string{"secret_host_fn"}, nil))
	if err == nil {
		t.Fatal("expected rejection")
	}
	var ge *gateerrors.Error
	if !errors.As(err, &ge) {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if ge.Value != nil || ge.Path != nil || ge.Cause != nil {
		t.Errorf("verdict leaks detail: %+v", ge)
	}
}

func TestCheckWithCustomContract(t *testing.T) {
	checker, err := New(Contract{
		Version:          "test",
		SupportedImports: []string{"c_read", "c_write", "c_canonical_address", "c_human_address"},
		RequiredExports:  []string{"init", "handle"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := checker.Check(wasmtest.Contract06()); err != nil {
		t.Errorf("0.6 contract should pass its own host: %v", err)
	}
	if err := checker.Check(wasmtest.Contract07()); !errors.Is(err, ErrUnsupportedImports) {
		t.Errorf("0.7 contract on 0.6 host: err = %v", err)
	}
}

func TestCheckerCopiesContract(t *testing.T) {
	contract := DefaultContract()
	checker, err := New(contract)
	if err != nil {
		t.Fatal(err)
	}

	contract.RequiredExports[0] = "mutated"
	contract.SupportedImports = append(contract.SupportedImports, "legacy_read")

	if err := checker.Check(wasmtest.Contract07()); err != nil {
		t.Errorf("caller mutation leaked into checker: %v", err)
	}
	got := checker.Contract()
	got.RequiredExports[0] = "mutated"
	if checker.Contract().RequiredExports[0] != "query" {
		t.Error("Contract() must return a copy")
	}
	if DefaultContract().RequiredExports[0] != "query" {
		t.Error("DefaultContract must return fresh slices")
	}
}

func TestNewRejectsInvalidContract(t *testing.T) {
	_, err := New(Contract{Version: "x", SupportedImports: []string{"a", "a"}})
	if err == nil {
		t.Fatal("expected error for duplicate import")
	}
}

type stubExtractor struct {
	syms  symbols.Symbols
	err   error
	calls int
}

func (s *stubExtractor) Extract([]byte, symbols.Options) (symbols.Symbols, error) {
	s.calls++
	return s.syms, s.err
}

func TestCheckUsesExtractorOnce(t *testing.T) {
	stub := &stubExtractor{syms: syms(nil, []string{"query", "init", "handle", "allocate", "deallocate", "cosmwasm_api_0_6"})}
	checker, err := New(DefaultContract(), WithExtractor(stub))
	if err != nil {
		t.Fatal(err)
	}
	if err := checker.Check([]byte("ignored")); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("extractor called %d times, want 1", stub.calls)
	}

	stub.err = errors.New("boom")
	err = checker.Check(nil)
	if !errors.Is(err, ErrMalformedModule) || !errors.Is(err, stub.err) {
		t.Errorf("err = %v, want ErrMalformedModule wrapping boom", err)
	}
}

func TestCheckLogsRejection(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	checker, err := New(DefaultContract(), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}

	_ = checker.Check(wasmtest.Contract06())
	_ = checker.Check(wasmtest.Contract07())

	rejected := logs.FilterMessage("module rejected").All()
	if len(rejected) != 1 {
		t.Fatalf("got %d rejection logs, want 1", len(rejected))
	}
	if got := rejected[0].ContextMap()["reason"]; got != string(gateerrors.KindUnsupportedImport) {
		t.Errorf("reason = %v", got)
	}
	if rejected[0].Level != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", rejected[0].Level)
	}
	if logs.FilterMessage("module admitted").Len() != 1 {
		t.Error("expected one admission log")
	}
}

func TestCheckConcurrent(t *testing.T) {
	checker := MustDefault()
	good, bad := wasmtest.Contract07(), wasmtest.Contract06()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				if err := checker.Check(good); err != nil {
					errs <- err
				}
			} else if err := checker.Check(bad); !errors.Is(err, ErrUnsupportedImports) {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent check: %v", err)
	}
}
