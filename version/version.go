// Package version exposes build-time version metadata.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"
)

// These variables are set during build time via -ldflags:
//
//	go build -ldflags "\
//	  -X github.com/filedepot/filedepot/version.Version=1.2.3 \
//	  -X github.com/filedepot/filedepot/version.Revision=abc123 \
//	  -X 'github.com/filedepot/filedepot/version.BuiltAt=$(date -u +%Y-%m-%dT%H:%M:%SZ)'"
var (
	// Version is the current version
	Version = "dev"

	// Revision is the short commit hash of source tree
	Revision = "unknown"

	// BuiltAt is the build time
	BuiltAt = "unknown"
)

// Info contains version information
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuiltAt   string `json:"builtAt"`
	GoVersion string `json:"goVersion"`
}

// GetVersionInfo returns the build's version information.
func GetVersionInfo() Info {
	builtAt := BuiltAt
	if builtAt == "unknown" {
		builtAt = time.Now().Format(time.RFC3339)
	}
	return Info{
		Version:   Version,
		Revision:  Revision,
		BuiltAt:   builtAt,
		GoVersion: runtime.Version(),
	}
}

// String returns a string representation of version information
func (i Info) String() string {
	return fmt.Sprintf("Version: %s\nRevision: %s\nBuilt At: %s\nGo Version: %s",
		i.Version, i.Revision, i.BuiltAt, i.GoVersion)
}

// JSON returns a JSON representation of version information
func (i Info) JSON() (string, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Print prints version information to stdout
func Print() {
	fmt.Println(GetVersionInfo().String())
}
