package obs

import (
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	GoVersion string
}

var (
	buildInfoOnce sync.Once

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "folio_build_info",
			Help: "Folio API build information.",
		},
		[]string{"version", "commit", "goversion"},
	)
)

// ReadBuildInfo fills Commit from the embedded vcs.revision when the linker left it empty.
func ReadBuildInfo(version, commit string) BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, GoVersion: "unknown"}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Commit != "" {
		return info
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			info.Commit = s.Value
			break
		}
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	return info
}

// InitBuildInfo exports folio_build_info{version,commit,goversion}=1.
func InitBuildInfo(version, commit string) BuildInfo {
	info := ReadBuildInfo(version, commit)
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)
	return info
}
