package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/OpenCHAMI/wattbox/internal/version.<Name>=<value>".
var (
	Version   string
	GitCommit string
	GitBranch string
	GitTag    string
	GitState  string // "clean" or "dirty"
	BuildTime string
	BuildHost string
	BuildUser string
)

// Info is the build metadata reported by `wattbox version`.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"git_commit,omitempty" yaml:"git_commit,omitempty"`
	GitBranch string `json:"git_branch,omitempty" yaml:"git_branch,omitempty"`
	GitTag    string `json:"git_tag,omitempty" yaml:"git_tag,omitempty"`
	GitState  string `json:"git_state,omitempty" yaml:"git_state,omitempty"`
	BuildTime string `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	BuildHost string `json:"build_host,omitempty" yaml:"build_host,omitempty"`
	BuildUser string `json:"build_user,omitempty" yaml:"build_user,omitempty"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Get returns the linked build metadata. Fields that were not set at link
// time are filled from the module build info when available.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		GitTag:    GitTag,
		GitState:  GitState,
		BuildTime: BuildTime,
		BuildHost: BuildHost,
		BuildUser: BuildUser,
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				if info.GitState == "" {
					info.GitState = map[string]string{"true": "dirty", "false": "clean"}[s.Value]
				}
			}
		}
	}
	if info.Version == "" {
		info.Version = "(devel)"
	}
	return info
}

func (i Info) String() string {
	s := i.Version
	if i.GitCommit != "" {
		commit := i.GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		s += fmt.Sprintf(" (%s", commit)
		if i.GitState == "dirty" {
			s += "-dirty"
		}
		s += ")"
	}
	return s + " " + i.GoVersion
}
