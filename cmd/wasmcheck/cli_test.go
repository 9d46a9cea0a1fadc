package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-gate/compat"
	"github.com/wippyai/wasm-gate/config"
	gateerrors "github.com/wippyai/wasm-gate/errors"
	"github.com/wippyai/wasm-gate/internal/wasmtest"
	"github.com/wippyai/wasm-gate/symbols"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), append([]string{"--no-color"}, args...), &out, &errOut)
	return out.String(), err
}

func TestCheckCmd(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.wasm", wasmtest.Contract07())
	old := writeFile(t, dir, "old.wasm", wasmtest.Contract06())

	out, err := runCLI(t, "check", good)
	if err != nil {
		t.Fatalf("check good: %v", err)
	}
	if !strings.Contains(out, "PASS "+good) {
		t.Errorf("output = %q", out)
	}

	out, err = runCLI(t, "check", good, old)
	if !errors.Is(err, errRejected) {
		t.Fatalf("err = %v, want errRejected", err)
	}
	if !strings.Contains(out, "FAIL "+old+": "+compat.ExtraImportMsg) {
		t.Errorf("output = %q", out)
	}
}

func TestCheckCmdGlobAndExplain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.wasm", wasmtest.Module([]string{"read_db", "legacy_read"}, nil))
	writeFile(t, dir, "b.wasm", wasmtest.Contract07())

	out, err := runCLI(t, "check", "--explain", filepath.Join(dir, "*.wasm"))
	if !errors.Is(err, errRejected) {
		t.Fatalf("err = %v", err)
	}
	for _, want := range []string{"unsupported imports (contract 0.7)", "legacy_read", "missing exports", "cosmwasm_api_0_6", "PASS"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "    read_db") {
		t.Errorf("supported import listed as unsupported:\n%s", out)
	}
}

func TestCheckCmdCompile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.wasm", wasmtest.Contract07())

	out, err := runCLI(t, "check", "--compile", good)
	if err != nil {
		t.Fatalf("check --compile: %v\n%s", err, out)
	}
}

func TestCheckCmdMissingFile(t *testing.T) {
	out, err := runCLI(t, "check", filepath.Join(t.TempDir(), "absent.wasm"))
	if !errors.Is(err, errRejected) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "FAIL") {
		t.Errorf("output = %q", out)
	}
}

func TestCheckCmdWazeroExtractor(t *testing.T) {
	dir := t.TempDir()
	old := writeFile(t, dir, "old.wasm", wasmtest.Contract06())

	_, err := runCLI(t, "--extractor", "wazero", "check", old)
	if !errors.Is(err, errRejected) {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckCmdConfigContract(t *testing.T) {
	dir := t.TempDir()
	old := writeFile(t, dir, "old.wasm", wasmtest.Contract06())
	cfg := writeFile(t, dir, "wasmgate.yaml", []byte(`
contract:
  version: "0.6"
  supported_imports: [c_read, c_write, c_canonical_address, c_human_address]
  required_exports: [init, handle, query]
`))

	if _, err := runCLI(t, "--config", cfg, "check", old); err != nil {
		t.Fatalf("0.6 module under 0.6 contract: %v", err)
	}
}

func TestInvalidExtractorFlag(t *testing.T) {
	if _, err := runCLI(t, "--extractor", "magic", "contract"); err == nil {
		t.Fatal("expected error for unknown extractor")
	}
}

func TestNewExtractorUnknown(t *testing.T) {
	c := &cli{cfg: &config.Config{Extractor: "magic"}}
	_, err := c.newExtractor(context.Background())
	var gerr *gateerrors.Error
	if !errors.As(err, &gerr) || gerr.Kind != gateerrors.KindUnsupported {
		t.Errorf("err = %v, want unsupported", err)
	}
}

func TestSymbolsCmd(t *testing.T) {
	dir := t.TempDir()
	code := wasmtest.New().
		ImportFunc("env", "read_db").
		Func("helper").
		ExportFunc("query").
		Bytes()
	path := writeFile(t, dir, "mod.wasm", code)

	out, err := runCLI(t, "symbols", path)
	if err != nil {
		t.Fatalf("symbols: %v", err)
	}
	want := "import env.read_db (func)\nexport query (func)\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}

	out, err = runCLI(t, "symbols", "--privates", path)
	if err != nil {
		t.Fatalf("symbols --privates: %v", err)
	}
	if !strings.Contains(out, "private helper") || strings.Contains(out, "import") {
		t.Errorf("output = %q", out)
	}
}

func TestContractCmd(t *testing.T) {
	out, err := runCLI(t, "contract")
	if err != nil {
		t.Fatalf("contract: %v", err)
	}

	var got compat.Contract
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if diff := cmp.Diff(compat.DefaultContract(), got); diff != "" {
		t.Errorf("contract (-want +got):\n%s", diff)
	}
}

func TestContractCmdAgainst(t *testing.T) {
	dir := t.TempDir()
	compatible := writeFile(t, dir, "prev.yaml", []byte(`
version: "0.6"
supported_imports: [read_db]
required_exports: [query, init, handle, allocate, deallocate, cosmwasm_api_0_6]
`))
	breaking := writeFile(t, dir, "wider.yaml", []byte(`
contract:
  version: "0.8"
  supported_imports: [read_db, write_db, canonicalize_address, humanize_address, debug]
  required_exports: [query]
`))

	out, err := runCLI(t, "contract", "--against", compatible)
	if err != nil {
		t.Fatalf("compatible: %v\n%s", err, out)
	}

	out, err = runCLI(t, "contract", "--against", breaking)
	if !errors.Is(err, errBreaking) {
		t.Fatalf("err = %v, want errBreaking", err)
	}
	for _, want := range []string{`supported import "debug" removed`, `required export "init" added`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectRows(t *testing.T) {
	syms := symbols.Symbols{
		{Kind: symbols.KindImport, Module: "env", Name: "read_db"},
		{Kind: symbols.KindImport, Module: "env", Name: "legacy"},
		{Kind: symbols.KindExport, Name: "query"},
		{Kind: symbols.KindExport, Name: "memory", Extern: symbols.ExternMemory},
		{Kind: symbols.KindExport, Name: "init", Extern: symbols.ExternGlobal},
	}
	contract := compat.Contract{
		Version:          "t",
		SupportedImports: []string{"read_db"},
		RequiredExports:  []string{"query", "init"},
	}

	var got []string
	for _, r := range inspectRows(syms, contract) {
		got = append(got, r.label+" "+r.status.String())
	}
	want := []string{
		"env.read_db (func) supported",
		"env.legacy (func) unsupported",
		"query (func) required",
		"memory (memory) not checked",
		"init (global) not checked",
		"init missing",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestInspectModel(t *testing.T) {
	checker := compat.MustDefault()
	syms, err := checker.Extract(wasmtest.Module([]string{"read_db", "legacy"}, []string{"query"}))
	if err != nil {
		t.Fatal(err)
	}
	m := newInspectModel("mod.wasm", checker, syms, newStyles(&bytes.Buffer{}, true))

	view := m.View()
	if !strings.Contains(view, "FAIL "+compat.ExtraImportMsg) {
		t.Errorf("view missing verdict:\n%s", view)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	for _, r := range m.visible() {
		if !r.status.problem() {
			t.Errorf("problems-only view shows %s %s", r.label, r.status)
		}
	}

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.selected != 1 {
		t.Errorf("selected = %d after down, want 1", m.selected)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
}
