// Package version resolves build metadata for the sscp binaries.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// Info is the build metadata printed by `sscp version` and embedded in ready output.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
	Go      string `json:"go"`
}

// Resolve combines -ldflags values with module build info. Placeholders ("", "dev",
// "unknown") are replaced from build info when it has something better.
func Resolve(version, commit, date string) Info {
	return resolve(version, commit, date, debug.ReadBuildInfo)
}

func resolve(version, commit, date string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{
		Version: clean(version),
		Commit:  clean(commit),
		Date:    clean(date),
		Go:      runtime.Version(),
	}
	if bi, ok := read(); ok && bi != nil {
		if info.Version == "" {
			if mv := clean(bi.Main.Version); mv != "(devel)" {
				info.Version = mv
			}
		}
		if info.Commit == "" {
			info.Commit = setting(bi, "vcs.revision")
		}
		if info.Date == "" {
			info.Date = setting(bi, "vcs.time")
		}
		if bi.GoVersion != "" {
			info.Go = bi.GoVersion
		}
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

// String formats "version (commit) date".
func (i Info) String() string {
	out := i.Version
	if i.Commit != "" {
		out += " (" + i.Commit + ")"
	}
	if i.Date != "" {
		out += " " + i.Date
	}
	return out
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "dev", "unknown":
		return ""
	}
	return s
}

func setting(bi *debug.BuildInfo, key string) string {
	for _, s := range bi.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
