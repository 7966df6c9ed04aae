// Package build reports the version of the running fluxfsm binary. Release
// builds set Version with -ldflags "-X github.com/fluxstate/fluxfsm/build.Version=v1.2.3";
// other builds fall back to the module and VCS data the Go toolchain embeds.
package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Version is injected at link time. Empty means "use the embedded build info".
var Version string //nolint:gochecknoglobals

const develVersion = "(devel)"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"` //nolint:tagliatelle
}

// String renders the info on one line, e.g. "v1.2.3 (abc1234, 2026-01-02T15:04:05Z) go1.25.0".
func (i Info) String() string {
	s := i.Version

	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 7 { //nolint:mnd
			commit = commit[:7]
		}

		if i.Modified {
			commit += "-dirty"
		}

		s += " (" + commit
		if i.Date != "" {
			s += ", " + i.Date
		}

		s += ")"
	}

	return fmt.Sprintf("%s %s", s, i.GoVersion)
}

// Current returns the build info of the running binary.
var Current = sync.OnceValue(func() Info { //nolint:gochecknoglobals
	bi, _ := debug.ReadBuildInfo()

	return fromBuildInfo(bi, Version)
})

func fromBuildInfo(bi *debug.BuildInfo, injected string) Info {
	info := Info{
		Version:   injected,
		GoVersion: runtime.Version(),
	}

	if bi == nil {
		if info.Version == "" {
			info.Version = develVersion
		}

		return info
	}

	if bi.GoVersion != "" {
		info.GoVersion = bi.GoVersion
	}

	if info.Version == "" {
		info.Version = bi.Main.Version
	}

	if info.Version == "" {
		info.Version = develVersion
	}

	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = setting.Value
		case "vcs.time":
			info.Date = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}

	return info
}
