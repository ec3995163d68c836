//go:build !darwin && !linux

package native

// DefaultLibraryName is the shared object name searched when no path is configured.
const DefaultLibraryName = "WasatchVCPP.dll"

// Dynamic is unavailable on this platform; use the simulated driver.
type Dynamic struct{ Library }

// Open always fails on this platform.
func Open(path string) (*Dynamic, error) {
	return nil, ErrUnsupportedPlatform
}

// Close is a no-op.
func (d *Dynamic) Close() error { return nil }

// Missing is always empty.
func (d *Dynamic) Missing() []string { return nil }
