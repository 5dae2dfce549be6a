// Package version exposes the binary version stamped at build time.
package version

// version is overridden at build time via
// -ldflags "-X github.com/prhythm/prhythm/internal/version.version=v1.2.3".
var version = "dev"

// Value returns the stamped version string.
func Value() string {
	return version
}
