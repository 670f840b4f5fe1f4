// Package compileinfo reports how the running binary was built, for the
// banner every run logs.
package compileinfo

import (
	"fmt"
	"log"
	"runtime/debug"
	"strings"
)

type CompileInfo struct {
	Module     string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	parts := []string{fmt.Sprintf("%s %s", orUnknown(c.Module), orUnknown(c.Version))}
	parts = append(parts, "built with "+orUnknown(c.GoVersion))
	if c.Commit != "" {
		parts = append(parts, fmt.Sprintf("commit %s (%s)", c.Commit, orUnknown(c.CommitTime)))
	}
	if c.Modified {
		parts = append(parts, "with uncommitted changes")
	}

	return strings.Join(parts, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}

	return s
}

// Get reads the build information embedded by the Go toolchain. Fields are
// empty when it is not available (as in tests).
func Get() CompileInfo {
	z, ok := debug.ReadBuildInfo()
	if !ok {
		return CompileInfo{}
	}

	return fromBuildInfo(z)
}

func fromBuildInfo(z *debug.BuildInfo) CompileInfo {
	out := CompileInfo{
		Module:    z.Main.Path,
		Version:   z.Main.Version,
		GoVersion: z.GoVersion,
	}

	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

// Log writes the banner through the standard logger.
func Log() {
	log.Println(Get())
}
