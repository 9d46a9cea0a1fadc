package symbols

import (
	"fmt"
	"strconv"
)

// Kind tags a symbol record.
type Kind uint8

const (
	KindImport  Kind = iota + 1 // name the module needs from the host
	KindExport                  // name the module provides to the host
	KindPrivate                 // named internal function (name section)
	KindSize                    // code size of a defined function
)

func (k Kind) String() string {
	switch k {
	case KindImport:
		return "import"
	case KindExport:
		return "export"
	case KindPrivate:
		return "private"
	case KindSize:
		return "size"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Extern is the external kind byte of an import or export entry.
type Extern byte

const (
	ExternFunc   Extern = 0
	ExternTable  Extern = 1
	ExternMemory Extern = 2
	ExternGlobal Extern = 3
	ExternTag    Extern = 4
)

func (e Extern) String() string {
	switch e {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	case ExternTag:
		return "tag"
	default:
		return fmt.Sprintf("extern(0x%02x)", byte(e))
	}
}

// Symbol is one entry of a module's symbol table.
//
// Module is the import namespace and is empty for every other kind. Index is
// the function index for private and size records. Size is only set on size
// records.
type Symbol struct {
	Name   string
	Module string
	Kind   Kind
	Extern Extern
	Index  uint32
	Size   uint32
}

func (s Symbol) String() string {
	switch s.Kind {
	case KindImport:
		return fmt.Sprintf("import %s.%s (%s)", s.Module, s.Name, s.Extern)
	case KindExport:
		return fmt.Sprintf("export %s (%s)", s.Name, s.Extern)
	case KindPrivate:
		return fmt.Sprintf("private %s (func %d)", s.Name, s.Index)
	case KindSize:
		return fmt.Sprintf("size %s %d", s.Name, s.Size)
	default:
		return s.Kind.String() + " " + s.Name
	}
}

// Symbols is an ordered symbol table as produced by an Extractor.
type Symbols []Symbol

// Imports returns the names of all import records, in table order.
func (s Symbols) Imports() []string {
	return s.names(KindImport)
}

// Exports returns the names of all export records, in table order.
func (s Symbols) Exports() []string {
	return s.names(KindExport)
}

// Public returns only the import and export records.
func (s Symbols) Public() Symbols {
	out := make(Symbols, 0, len(s))
	for _, sym := range s {
		if sym.Kind == KindImport || sym.Kind == KindExport {
			out = append(out, sym)
		}
	}
	return out
}

func (s Symbols) names(kind Kind) []string {
	var names []string
	for _, sym := range s {
		if sym.Kind == kind {
			names = append(names, sym.Name)
		}
	}
	return names
}

// Options selects which records an Extractor reports.
type Options struct {
	Imports  bool
	Exports  bool
	Privates bool
	Sizes    bool
}

// PublicOptions asks for imports and exports only.
var PublicOptions = Options{Imports: true, Exports: true}

// AllOptions asks for every record kind.
var AllOptions = Options{Imports: true, Exports: true, Privates: true, Sizes: true}

// Extractor reads the symbol table of a core WebAssembly module.
type Extractor interface {
	Extract(code []byte, opts Options) (Symbols, error)
}

// Extract reads the symbol table of code with the default Scanner.
func Extract(code []byte, opts Options) (Symbols, error) {
	return Scanner{}.Extract(code, opts)
}
