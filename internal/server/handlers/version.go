package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/crucible"
)

// BuildInfo is stamped into the binary by the linker.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// UpstreamInfo describes the API this process fronts.
type UpstreamInfo struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Tools   int    `json:"tools" yaml:"tools"`
}

var (
	versionMu sync.RWMutex
	build     = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
	appName   string
	upstream  *UpstreamInfo
)

// SetVersionInfo records build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	build = BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// SetAppName sets the binary name reported by /version.
func SetAppName(name string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	appName = name
}

// SetUpstreamInfo records the upstream base URL and the number of exposed
// tools. The base URL must not carry credentials.
func SetUpstreamInfo(baseURL string, tools int) {
	versionMu.Lock()
	defer versionMu.Unlock()
	if baseURL == "" {
		upstream = nil
		return
	}
	upstream = &UpstreamInfo{BaseURL: baseURL, Tools: tools}
}

// VersionResponse is the /version body and the `version --extended` document.
type VersionResponse struct {
	App          AppInfo       `json:"app" yaml:"app"`
	Upstream     *UpstreamInfo `json:"upstream,omitempty" yaml:"upstream,omitempty"`
	Dependencies DepInfo       `json:"dependencies" yaml:"dependencies"`
	Runtime      RuntimeInfo   `json:"runtime" yaml:"runtime"`
}

// AppInfo contains application version details.
type AppInfo struct {
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"git_commit" yaml:"git_commit"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version,omitempty" yaml:"go_version,omitempty"`
}

// DepInfo contains dependency version information.
type DepInfo struct {
	Gofulmen string `json:"gofulmen" yaml:"gofulmen"`
	Crucible string `json:"crucible" yaml:"crucible"`
}

// RuntimeInfo contains runtime environment information.
type RuntimeInfo struct {
	Platform      string `json:"platform" yaml:"platform"`
	NumCPU        int    `json:"num_cpu" yaml:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines" yaml:"num_goroutines"`
}

// CurrentVersion assembles the version report.
func CurrentVersion() VersionResponse {
	versionMu.RLock()
	name, info := appName, build
	var up *UpstreamInfo
	if upstream != nil {
		copied := *upstream
		up = &copied
	}
	versionMu.RUnlock()

	if name == "" {
		name = "unknown"
		if len(os.Args) > 0 && os.Args[0] != "" {
			name = filepath.Base(os.Args[0])
		}
	}

	deps := crucible.GetVersion()
	return VersionResponse{
		App: AppInfo{
			Name:      name,
			Version:   info.Version,
			Commit:    info.Commit,
			BuildDate: info.BuildDate,
			GoVersion: runtime.Version(),
		},
		Upstream: up,
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	}
}

// VersionHandler serves the version report.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CurrentVersion())
}
