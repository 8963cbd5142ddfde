// Package buildinfo reports the version a binary was built from.
//
// Release builds stamp the variables with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/diagramir/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/diagramir/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/matzehuels/diagramir/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/diagramir
package buildinfo

import (
	"fmt"
	"runtime"
)

// Stamped at link time. Unstamped builds report "dev".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the build description served by /healthz and printed by
// `diagramir --version`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get returns the stamped build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date, GoVersion: runtime.Version()}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", i.Version, i.Commit, i.Date, i.GoVersion)
}

// Template is a cobra version template.
func Template() string {
	return "{{.Name}} " + Get().String() + "\n"
}
