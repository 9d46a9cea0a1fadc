package compat

import (
	"fmt"

	"github.com/wippyai/wasm-gate/errors"
)

// Contract is the pair of name lists a host version admits modules against.
type Contract struct {
	// Version labels the host API the lists describe.
	Version string `yaml:"version" koanf:"version"`

	// SupportedImports lists every function the host provides when it
	// instantiates a module. Modules may import a subset.
	SupportedImports []string `yaml:"supported_imports" koanf:"supported_imports"`

	// RequiredExports lists the entry points the host calls. Every module
	// must export all of them. Frozen at 1.0: adding a name here rejects
	// modules that were accepted before.
	RequiredExports []string `yaml:"required_exports" koanf:"required_exports"`
}

// DefaultVersion is the host API version of DefaultContract.
const DefaultVersion = "0.7"

// Lists all imports provided when instantiating a module.
// Must be updated when new host functions are added.
var supportedImports = []string{
	"read_db",
	"write_db",
	"canonicalize_address",
	"humanize_address",
}

// Lists all entry points the host calls on a module.
var requiredExports = []string{
	"query",
	"init",
	"handle",
	"allocate",
	"deallocate",
	"cosmwasm_api_0_6",
}

// DefaultContract returns the built-in contract. The slices are fresh copies.
func DefaultContract() Contract {
	return Contract{
		Version:          DefaultVersion,
		SupportedImports: append([]string(nil), supportedImports...),
		RequiredExports:  append([]string(nil), requiredExports...),
	}
}

// Clone returns a deep copy of c.
func (c Contract) Clone() Contract {
	return Contract{
		Version:          c.Version,
		SupportedImports: append([]string(nil), c.SupportedImports...),
		RequiredExports:  append([]string(nil), c.RequiredExports...),
	}
}

// Validate reports the first structural problem with c: a missing version,
// an empty name or a name listed twice in the same list.
func (c Contract) Validate() error {
	if c.Version == "" {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("contract", "version").
			Detail("version is required").
			Build()
	}
	if err := validateNames("supported_imports", c.SupportedImports); err != nil {
		return err
	}
	return validateNames("required_exports", c.RequiredExports)
}

func validateNames(field string, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if name == "" {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("contract", field, fmt.Sprint(i)).
				Detail("empty name").
				Build()
		}
		if _, dup := seen[name]; dup {
			return errors.Duplicate(errors.PhaseConfig, []string{"contract", field}, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Breaks lists the differences between prev and c that would reject a
// module prev admits: a supported import that was dropped, or a required
// export that was added. An empty result means c is backward compatible.
func (c Contract) Breaks(prev Contract) []string {
	var breaks []string

	supported := toSet(c.SupportedImports)
	for _, name := range prev.SupportedImports {
		if _, ok := supported[name]; !ok {
			breaks = append(breaks, fmt.Sprintf("supported import %q removed", name))
		}
	}

	required := toSet(prev.RequiredExports)
	for _, name := range c.RequiredExports {
		if _, ok := required[name]; !ok {
			breaks = append(breaks, fmt.Sprintf("required export %q added", name))
		}
	}

	return breaks
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
