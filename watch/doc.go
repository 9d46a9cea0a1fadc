// Package watch re-checks WebAssembly modules as they land in a directory.
//
// Writes are debounced per file, so a module copied in several chunks is
// checked once, after it has been quiet for the debounce window.
package watch
