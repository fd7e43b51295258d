// Package buildinfo extracts build and dependency information from the
// running binary, for startup logging and diagnostics.
package buildinfo

import (
	"runtime/debug"
	"sort"
)

// DependencyInfo describes one module dependency and its resolved version.
type DependencyInfo struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Replace string `json:"replace,omitempty"`
}

// BuildInfo contains build-time information embedded in the binary.
type BuildInfo struct {
	GoVersion    string           `json:"goVersion"`
	MainModule   string           `json:"mainModule"`
	MainVersion  string           `json:"mainVersion"`
	Dependencies []DependencyInfo `json:"dependencies"`
}

// Get extracts build information from the currently running binary using
// runtime/debug, the same mechanism `go version -m` relies on.
func Get() *BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return &BuildInfo{GoVersion: "unknown", MainModule: "unknown", MainVersion: "unknown"}
	}

	bi := &BuildInfo{
		GoVersion:    info.GoVersion,
		MainModule:   info.Path,
		MainVersion:  info.Main.Version,
		Dependencies: make([]DependencyInfo, 0, len(info.Deps)),
	}

	for _, dep := range info.Deps {
		d := DependencyInfo{Path: dep.Path, Version: dep.Version}
		if dep.Replace != nil {
			d.Replace = dep.Replace.Path + "@" + dep.Replace.Version
		}
		bi.Dependencies = append(bi.Dependencies, d)
	}

	sort.Slice(bi.Dependencies, func(i, j int) bool {
		return bi.Dependencies[i].Path < bi.Dependencies[j].Path
	})

	return bi
}

// Dependency returns version information for a specific module path, or nil
// if the running binary does not depend on it.
func Dependency(modulePath string) *DependencyInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			d := &DependencyInfo{Path: dep.Path, Version: dep.Version}
			if dep.Replace != nil {
				d.Replace = dep.Replace.Path + "@" + dep.Replace.Version
			}
			return d
		}
	}
	return nil
}
