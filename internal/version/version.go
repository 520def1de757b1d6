// Package version holds build metadata for the dashboard binaries.
//
// Values are stamped at link time:
//
//	go build -ldflags "-X github.com/rickgao/cem-dashboard/internal/version.Version=0.3.0 \
//	                   -X github.com/rickgao/cem-dashboard/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/cem-dashboard/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the version block reported by the health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the stamped build metadata.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

// String formats the metadata for --version output.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
