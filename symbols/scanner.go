package symbols

import (
	"errors"
	"fmt"

	"github.com/wippyai/wasm-gate/symbols/internal/binary"
)

// Parsing errors returned by Scanner.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
	ErrComponent      = errors.New("component-model binary is not a core module")
)

// ParseError reports where in the binary scanning failed.
type ParseError = binary.ParseError

const (
	wasmMagic   uint32 = 0x6D736100
	wasmVersion uint32 = 0x01
)

// Section IDs
const (
	sectionCustom    byte = 0
	sectionType      byte = 1
	sectionImport    byte = 2
	sectionFunction  byte = 3
	sectionTable     byte = 4
	sectionMemory    byte = 5
	sectionGlobal    byte = 6
	sectionExport    byte = 7
	sectionStart     byte = 8
	sectionElement   byte = 9
	sectionCode      byte = 10
	sectionData      byte = 11
	sectionDataCount byte = 12
	sectionTag       byte = 13
)

// Limits flags
const (
	limitsHasMax   byte = 0x01
	limitsMemory64 byte = 0x04
)

// GC reference type prefixes carrying a heap type immediate
const (
	valRefNull byte = 0x63
	valRef     byte = 0x64
)

// nameSubsectionFunctions is the function-names subsection of the "name" custom section.
const nameSubsectionFunctions byte = 1

// Scanner extracts symbols by walking the module's sections without
// decoding function bodies. The zero value is ready to use.
type Scanner struct{}

// scan accumulates what the sections contribute to the symbol table.
type scan struct {
	imports     Symbols
	exports     Symbols
	funcImports uint32
	funcCount   uint32
	bodySizes   []uint32
	funcNames   map[uint32]string
}

// Extract implements Extractor.
func (Scanner) Extract(code []byte, opts Options) (Symbols, error) {
	r := binary.NewReader(code)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != wasmMagic {
		return nil, ErrInvalidMagic
	}

	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != wasmVersion {
		// Components share the preamble but encode a non-zero layer in the upper half.
		if version>>16 != 0 {
			return nil, ErrComponent
		}
		return nil, ErrInvalidVersion
	}

	s := &scan{}
	wantNames := opts.Privates || opts.Sizes
	var lastSectionOrder int

	for r.Len() > 0 {
		sectionID, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("section header", err)
		}

		if sectionID != sectionCustom {
			order := sectionOrder(sectionID)
			if order == 0 {
				return nil, r.WrapError("section header", fmt.Errorf("unknown section ID: 0x%02x", sectionID))
			}
			if order <= lastSectionOrder {
				return nil, r.WrapError("section header", fmt.Errorf("section %d appears out of order", sectionID))
			}
			lastSectionOrder = order
		}

		sectionSize, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}

		sr, err := r.Sub(int(sectionSize))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		switch sectionID {
		case sectionCustom:
			if wantNames {
				s.scanCustom(sr)
			}
		case sectionImport:
			if err := s.scanImports(sr); err != nil {
				return nil, sr.WrapError("import section", err)
			}
		case sectionFunction:
			if s.funcCount, err = sr.ReadU32(); err != nil {
				return nil, sr.WrapError("function section", err)
			}
		case sectionExport:
			if err := s.scanExports(sr); err != nil {
				return nil, sr.WrapError("export section", err)
			}
		case sectionCode:
			if err := s.scanCode(sr); err != nil {
				return nil, sr.WrapError("code section", err)
			}
		}
	}

	if uint32(len(s.bodySizes)) != s.funcCount {
		return nil, &ParseError{
			Section:  "code section",
			Position: r.Position(),
			Err:      fmt.Errorf("%d function bodies for %d functions", len(s.bodySizes), s.funcCount),
		}
	}

	return s.symbols(opts), nil
}

// sectionOrder returns the canonical ordering for a section ID, or 0 for an
// unknown ID. The order differs from the IDs for tag and data count sections.
func sectionOrder(id byte) int {
	switch id {
	case sectionType:
		return 1
	case sectionImport:
		return 2
	case sectionFunction:
		return 3
	case sectionTable:
		return 4
	case sectionMemory:
		return 5
	case sectionTag:
		return 6
	case sectionGlobal:
		return 7
	case sectionExport:
		return 8
	case sectionStart:
		return 9
	case sectionElement:
		return 10
	case sectionDataCount:
		return 11
	case sectionCode:
		return 12
	case sectionData:
		return 13
	default:
		return 0
	}
}

func (s *scan) scanImports(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if err := skipImportDesc(r, Extern(kind)); err != nil {
			return err
		}
		if Extern(kind) == ExternFunc {
			s.funcImports++
		}
		s.imports = append(s.imports, Symbol{
			Kind:   KindImport,
			Module: module,
			Name:   name,
			Extern: Extern(kind),
		})
	}
	return nil
}

func skipImportDesc(r *binary.Reader, kind Extern) error {
	switch kind {
	case ExternFunc:
		_, err := r.ReadU32()
		return err
	case ExternTable:
		if err := skipRefType(r); err != nil {
			return err
		}
		return skipLimits(r)
	case ExternMemory:
		return skipLimits(r)
	case ExternGlobal:
		if err := skipRefType(r); err != nil {
			return err
		}
		_, err := r.ReadByte()
		return err
	case ExternTag:
		if _, err := r.ReadByte(); err != nil {
			return err
		}
		_, err := r.ReadU32()
		return err
	default:
		return fmt.Errorf("unknown import kind: %d", kind)
	}
}

// skipRefType skips a value or reference type, including the heap type
// immediate of GC reference types.
func skipRefType(r *binary.Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	if b == valRefNull || b == valRef {
		return r.SkipLEB128(5)
	}
	return nil
}

func skipLimits(r *binary.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	width := 5
	if flags&limitsMemory64 != 0 {
		width = 10
	}
	if err := r.SkipLEB128(width); err != nil {
		return err
	}
	if flags&limitsHasMax != 0 {
		return r.SkipLEB128(width)
	}
	return nil
}

func (s *scan) scanExports(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if Extern(kind) > ExternTag {
			return fmt.Errorf("invalid export kind: 0x%02x", kind)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		s.exports = append(s.exports, Symbol{
			Kind:   KindExport,
			Name:   name,
			Extern: Extern(kind),
			Index:  idx,
		})
	}
	return nil
}

func (s *scan) scanCode(r *binary.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	// each body takes at least one byte, which bounds a hostile count
	s.bodySizes = make([]uint32, 0, min(int(count), r.Len()))
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		if err := r.Skip(int(size)); err != nil {
			return err
		}
		s.bodySizes = append(s.bodySizes, size)
	}
	return nil
}

// scanCustom reads function names from the "name" section. Custom sections
// carry no semantics, so a malformed one is ignored rather than rejected.
func (s *scan) scanCustom(r *binary.Reader) {
	name, err := r.ReadName()
	if err != nil || name != "name" {
		return
	}
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return
		}
		size, err := r.ReadU32()
		if err != nil {
			return
		}
		sub, err := r.Sub(int(size))
		if err != nil {
			return
		}
		if id != nameSubsectionFunctions {
			continue
		}
		count, err := sub.ReadU32()
		if err != nil {
			return
		}
		names := make(map[uint32]string, min(int(count), sub.Len()))
		for i := uint32(0); i < count; i++ {
			idx, err := sub.ReadU32()
			if err != nil {
				return
			}
			fn, err := sub.ReadName()
			if err != nil {
				return
			}
			names[idx] = fn
		}
		s.funcNames = names
	}
}

func (s *scan) symbols(opts Options) Symbols {
	var out Symbols
	if opts.Imports {
		out = append(out, s.imports...)
	}
	if opts.Exports {
		out = append(out, s.exports...)
	}
	if !opts.Privates && !opts.Sizes {
		return out
	}

	exported := make(map[uint32]string)
	for _, exp := range s.exports {
		if exp.Extern != ExternFunc {
			continue
		}
		if _, ok := exported[exp.Index]; !ok {
			exported[exp.Index] = exp.Name
		}
	}

	if opts.Privates {
		for i := uint32(0); i < s.funcCount; i++ {
			idx := s.funcImports + i
			name, ok := s.funcNames[idx]
			if !ok {
				continue
			}
			if _, isExport := exported[idx]; isExport {
				continue
			}
			out = append(out, Symbol{Kind: KindPrivate, Name: name, Extern: ExternFunc, Index: idx})
		}
	}

	if opts.Sizes {
		for i, size := range s.bodySizes {
			idx := s.funcImports + uint32(i)
			name, ok := exported[idx]
			if !ok {
				name, ok = s.funcNames[idx]
			}
			if !ok {
				name = fmt.Sprintf("func[%d]", idx)
			}
			out = append(out, Symbol{Kind: KindSize, Name: name, Extern: ExternFunc, Index: idx, Size: size})
		}
	}

	return out
}
