// Package config loads wasmgate settings from YAML and the environment.
//
// Sources are applied in order: built-in defaults, the YAML file, then
// WASMGATE_* variables. Nested keys use a single underscore as separator
// and a double underscore for an underscore inside a key:
//
//	WASMGATE_LOG_LEVEL=debug                     log.level
//	WASMGATE_RUNTIME_CACHE__SIZE=64              runtime.cache_size
//	WASMGATE_CONTRACT_REQUIRED__EXPORTS=a,b      contract.required_exports
package config
