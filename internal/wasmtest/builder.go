// Package wasmtest builds small, valid core WebAssembly modules for tests.
//
// Every defined function has the type () -> () and an empty body, which is
// enough for wazero to compile the module and for symbol extraction to see
// the import and export tables.
//
//	code := wasmtest.New().
//		ImportFunc("env", "read_db").
//		ExportFunc("init").
//		Memory(1).ExportMemory("memory").
//		Bytes()
package wasmtest

const (
	sectionCustom   byte = 0
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10

	externFunc   byte = 0
	externMemory byte = 2
	externGlobal byte = 3

	funcTypeByte byte = 0x60
	valI32       byte = 0x7f
	opEnd        byte = 0x0b
)

type importEntry struct {
	module, name string
	kind         byte
	min          uint32
}

type exportEntry struct {
	name string
	kind byte
	// defined is the index among defined functions; imports are added at encode time.
	defined uint32
}

// Builder accumulates a module definition.
type Builder struct {
	imports  []importEntry
	exports  []exportEntry
	funcs    []string
	memory   *uint32
	version  uint32
	noBodies bool
}

// New returns an empty module builder.
func New() *Builder {
	return &Builder{version: 1}
}

// ImportFunc adds a function import of type () -> ().
func (b *Builder) ImportFunc(module, name string) *Builder {
	b.imports = append(b.imports, importEntry{module: module, name: name, kind: externFunc})
	return b
}

// ImportMemory adds a memory import with the given minimum page count.
func (b *Builder) ImportMemory(module, name string, minPages uint32) *Builder {
	b.imports = append(b.imports, importEntry{module: module, name: name, kind: externMemory, min: minPages})
	return b
}

// ImportGlobal adds an immutable i32 global import.
func (b *Builder) ImportGlobal(module, name string) *Builder {
	b.imports = append(b.imports, importEntry{module: module, name: name, kind: externGlobal})
	return b
}

// Func adds a defined function that is not exported. A non-empty name is
// recorded in the "name" custom section.
func (b *Builder) Func(name string) *Builder {
	b.funcs = append(b.funcs, name)
	return b
}

// ExportFunc adds a defined function and exports it under name.
func (b *Builder) ExportFunc(name string) *Builder {
	b.exports = append(b.exports, exportEntry{name: name, kind: externFunc, defined: uint32(len(b.funcs))})
	b.funcs = append(b.funcs, "")
	return b
}

// Memory defines the module's memory.
func (b *Builder) Memory(minPages uint32) *Builder {
	b.memory = &minPages
	return b
}

// ExportMemory exports memory 0 under name. Memory must be defined or imported.
func (b *Builder) ExportMemory(name string) *Builder {
	b.exports = append(b.exports, exportEntry{name: name, kind: externMemory})
	return b
}

// ExportGlobal exports global 0 under name. A global must be imported.
func (b *Builder) ExportGlobal(name string) *Builder {
	b.exports = append(b.exports, exportEntry{name: name, kind: externGlobal})
	return b
}

// Version overrides the 4-byte version field of the preamble.
func (b *Builder) Version(v uint32) *Builder {
	b.version = v
	return b
}

// WithoutCode omits the code section, producing a module whose function
// section declares bodies that never arrive.
func (b *Builder) WithoutCode() *Builder {
	b.noBodies = true
	return b
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	w := &writer{}
	w.WriteU32LE(0x6D736100)
	w.WriteU32LE(b.version)

	sec := &writer{}
	sec.WriteU32(1)
	sec.Byte(funcTypeByte)
	sec.WriteU32(0)
	sec.WriteU32(0)
	w.section(sectionType, sec.Bytes())

	var funcImports uint32
	if len(b.imports) > 0 {
		sec = &writer{}
		sec.WriteU32(uint32(len(b.imports)))
		for _, imp := range b.imports {
			sec.WriteName(imp.module)
			sec.WriteName(imp.name)
			sec.Byte(imp.kind)
			switch imp.kind {
			case externFunc:
				sec.WriteU32(0)
				funcImports++
			case externMemory:
				sec.Byte(0x00)
				sec.WriteU32(imp.min)
			case externGlobal:
				sec.Byte(valI32)
				sec.Byte(0x00)
			}
		}
		w.section(sectionImport, sec.Bytes())
	}

	if len(b.funcs) > 0 {
		sec = &writer{}
		sec.WriteU32(uint32(len(b.funcs)))
		for range b.funcs {
			sec.WriteU32(0)
		}
		w.section(sectionFunction, sec.Bytes())
	}

	if b.memory != nil {
		sec = &writer{}
		sec.WriteU32(1)
		sec.Byte(0x00)
		sec.WriteU32(*b.memory)
		w.section(sectionMemory, sec.Bytes())
	}

	if len(b.exports) > 0 {
		sec = &writer{}
		sec.WriteU32(uint32(len(b.exports)))
		for _, exp := range b.exports {
			sec.WriteName(exp.name)
			sec.Byte(exp.kind)
			if exp.kind == externFunc {
				sec.WriteU32(funcImports + exp.defined)
			} else {
				sec.WriteU32(0)
			}
		}
		w.section(sectionExport, sec.Bytes())
	}

	if len(b.funcs) > 0 && !b.noBodies {
		sec = &writer{}
		sec.WriteU32(uint32(len(b.funcs)))
		for range b.funcs {
			sec.WriteU32(2)
			sec.Byte(0x00) // no locals
			sec.Byte(opEnd)
		}
		w.section(sectionCode, sec.Bytes())
	}

	var named []uint32
	for i, name := range b.funcs {
		if name != "" {
			named = append(named, uint32(i))
		}
	}
	if len(named) > 0 {
		names := &writer{}
		names.WriteU32(uint32(len(named)))
		for _, i := range named {
			names.WriteU32(funcImports + i)
			names.WriteName(b.funcs[i])
		}
		sec = &writer{}
		sec.WriteName("name")
		sec.Byte(1)
		sec.WriteU32(uint32(len(names.Bytes())))
		sec.WriteBytes(names.Bytes())
		w.section(sectionCustom, sec.Bytes())
	}

	return w.Bytes()
}

// Module builds a module importing each name from "env" and exporting a
// function for each export name.
func Module(imports, exports []string) []byte {
	b := New()
	for _, name := range imports {
		b.ImportFunc("env", name)
	}
	for _, name := range exports {
		b.ExportFunc(name)
	}
	return b.Memory(1).ExportMemory("memory").Bytes()
}

// Contract07 mirrors a contract built against the 0.7 host API.
func Contract07() []byte {
	return Module(
		[]string{"read_db", "write_db", "canonicalize_address", "humanize_address"},
		[]string{"query", "init", "handle", "allocate", "deallocate", "cosmwasm_api_0_6"},
	)
}

// Contract06 mirrors a contract built against the 0.6 host API, which used
// the c_-prefixed imports.
func Contract06() []byte {
	return Module(
		[]string{"c_read", "c_write", "c_canonical_address", "c_human_address"},
		[]string{"query", "init", "handle", "allocate", "deallocate", "cosmwasm_api_0_6"},
	)
}
