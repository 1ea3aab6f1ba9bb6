// Package version exposes build metadata for the huntex binaries and model bundles.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	unknownValue     = "unknown"
	devVersion       = "dev"
	commitHashLength = 7
	semVerPartsCount = 3
)

// Build-time variables set by ldflags
var (
	Version   = devVersion
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Module    string `json:"module"`
	Dirty     bool   `json:"dirty"`
	// Deps lists module dependencies as path@version.
	Deps []string `json:"deps,omitempty"`
}

// Info returns detailed build information
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Module = bi.Main.Path
		for _, dep := range bi.Deps {
			info.Deps = append(info.Deps, dep.Path+"@"+dep.Version)
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.modified" && s.Value == "true" {
				info.Dirty = true
			}
		}
	}
	return info
}

// String returns a formatted version string
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("huntex KOI classifier\n")
	fmt.Fprintf(&sb, "Version: %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue && b.BuildDate != "" {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	if b.GitCommit != unknownValue && b.GitCommit != "" {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	if b.Module != "" {
		fmt.Fprintf(&sb, "Module: %s\n", b.Module)
	}
	return sb.String()
}

// SemVer represents semantic version components
type SemVer struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease string
}

// ParseSemVer parses [v]MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD]. Build
// metadata is discarded.
func ParseSemVer(version string) (*SemVer, error) {
	if version == "" {
		return nil, fmt.Errorf("version string cannot be empty")
	}
	version = strings.TrimPrefix(version, "v")
	if idx := strings.Index(version, "+"); idx != -1 {
		version = version[:idx]
	}
	var s SemVer
	if idx := strings.Index(version, "-"); idx != -1 {
		s.PreRelease = version[idx+1:]
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	if len(parts) != semVerPartsCount {
		return nil, fmt.Errorf("invalid version format: %s", version)
	}
	for i, dst := range []*int{&s.Major, &s.Minor, &s.Patch} {
		if _, err := fmt.Sscanf(parts[i], "%d", dst); err != nil {
			return nil, fmt.Errorf("invalid version component %q in %s", parts[i], version)
		}
	}
	return &s, nil
}

func (s *SemVer) String() string {
	v := fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
	if s.PreRelease != "" {
		v += "-" + s.PreRelease
	}
	return v
}

// Compare returns -1, 0 or 1. A release sorts after its pre-releases.
func (s *SemVer) Compare(other *SemVer) int {
	for _, d := range [][2]int{{s.Major, other.Major}, {s.Minor, other.Minor}, {s.Patch, other.Patch}} {
		if d[0] != d[1] {
			if d[0] > d[1] {
				return 1
			}
			return -1
		}
	}
	switch {
	case s.PreRelease == other.PreRelease:
		return 0
	case s.PreRelease == "":
		return 1
	case other.PreRelease == "":
		return -1
	}
	return strings.Compare(s.PreRelease, other.PreRelease)
}

// Compatible reports whether a bundle written by version producer can be
// read by the running binary. Development builds accept everything;
// otherwise the major versions must match and the producer must not be
// newer than the running binary.
func Compatible(producer string) bool {
	if Version == devVersion || producer == devVersion {
		return true
	}
	running, err := ParseSemVer(Version)
	if err != nil {
		return true
	}
	written, err := ParseSemVer(producer)
	if err != nil {
		return false
	}
	return running.Major == written.Major && written.Compare(running) <= 0
}
