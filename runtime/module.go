package runtime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/tetratelabs/wazero"
)

// Module is an admitted, compiled module. Instantiation is left to the
// caller, who links the host functions the contract promises.
type Module struct {
	compiled wazero.CompiledModule
	digest   [sha256.Size]byte
	imports  []string
	exports  []string
}

// Digest returns the hex SHA-256 of the module bytes.
func (m *Module) Digest() string {
	return hex.EncodeToString(m.digest[:])
}

// Imports returns the names the module imports, in table order.
func (m *Module) Imports() []string {
	return append([]string(nil), m.imports...)
}

// Exports returns the names the module exports, in table order.
func (m *Module) Exports() []string {
	return append([]string(nil), m.exports...)
}

// Compiled returns the wazero compiled module.
func (m *Module) Compiled() wazero.CompiledModule {
	return m.compiled
}

// Close releases the compiled module.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
