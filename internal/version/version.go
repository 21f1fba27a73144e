// Package version holds build metadata for voucherwatch, set with -ldflags
// at build time.
package version

import (
	"fmt"
	"os"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

var (
	// Version is the release tag or commit hash.
	// Set via: -ldflags "-X voucherwatch/internal/version.Version=..."
	Version = "unknown"

	// BuildDate is the UTC build timestamp.
	BuildDate = "unknown"

	// GitCommit is the source commit SHA.
	GitCommit = "unknown"
)

// Info holds build metadata plus the identity of this process.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var (
	once sync.Once
	info Info
)

// GetInfo returns build metadata. The instance ID and hostname are computed
// once per process.
func GetInfo() Info {
	once.Do(func() {
		info = Info{
			Version:    Version,
			GitCommit:  GitCommit,
			BuildDate:  BuildDate,
			InstanceID: uuid.NewString(),
			Hostname:   getHostname(),
		}
	})
	return info
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// IsRelease reports whether Version is a semantic version without a
// pre-release suffix, i.e. a tagged build.
func (i Info) IsRelease() bool {
	v, err := semver.NewVersion(i.Version)
	if err != nil {
		return false
	}
	return v.Prerelease() == ""
}

// UserAgent is the default User-Agent for upstream requests.
func (i Info) UserAgent() string {
	return "voucherwatch/" + i.Version
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("voucherwatch %s (commit: %s, built: %s)", i.Version, i.GitCommit, i.BuildDate)
}
