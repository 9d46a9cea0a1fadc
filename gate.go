package wasmgate

import (
	"sync"

	"github.com/wippyai/wasm-gate/compat"
)

var (
	defaultChecker     *compat.Checker
	defaultCheckerOnce sync.Once
)

// DefaultChecker returns the shared Checker for compat.DefaultContract.
func DefaultChecker() *compat.Checker {
	defaultCheckerOnce.Do(func() {
		defaultChecker = compat.MustDefault()
	})
	return defaultChecker
}

// CheckAPICompatibility returns nil if code can run against the default
// host API, or the verdict describing the first check it fails.
func CheckAPICompatibility(code []byte) error {
	return DefaultChecker().Check(code)
}
