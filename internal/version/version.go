// Package version exposes build metadata stamped in at link time:
//
//	go build -ldflags "-X github.com/pahegate/pahegate/internal/version.Version=1.2.0 ..."
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release version, "dev" for untagged builds.
	Version = "dev"

	// Commit is the git revision the binary was built from.
	Commit = "none"

	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"
)

// Info is the structured form emitted by `pahegate version --json`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata together with runtime details.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Full renders the human-readable multi-line form.
func Full() string {
	i := Get()
	return fmt.Sprintf("pahegate %s\n  commit: %s\n  built:  %s\n  go:     %s (%s)",
		i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}
