package native

import "errors"

var (
	// ErrLibraryNotFound is returned when the shared library cannot be loaded.
	ErrLibraryNotFound = errors.New("native: driver library not found")

	// ErrSymbolMissing is returned when a required wp_* symbol is absent.
	ErrSymbolMissing = errors.New("native: required symbol missing")

	// ErrUnsupportedPlatform is returned where dynamic loading is not available.
	ErrUnsupportedPlatform = errors.New("native: dynamic loading not supported on this platform")
)
