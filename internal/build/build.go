// Package build holds version information injected at link time.
package build

// Set with -ldflags "-X github.com/drummonds/pdfembed/internal/build.Version=..."
var (
	Version   = "dev"
	BuildDate = ""
)
