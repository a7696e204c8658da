// SPDX-License-Identifier: MIT
//
// Package build holds the name, version, commit and build time of the
// binary. Release builds inject them with linker flags:
//
//	go build -ldflags "-X dfttest/pkg/build.buildName=dfttest -X dfttest/pkg/build.buildVersion=v0.3.0 ..."
//
// Development builds fall back to the module's embedded build info.
package build

import (
	"fmt"
	"runtime/debug"
)

const description = "Frequency-domain block video denoiser"

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        "dfttest",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
	}
)

// Initialize validates and copies the linker-injected values. When any is
// missing it fills what it can from the embedded module info and returns an
// error naming the first missing flag, so callers can treat it as a warning.
func Initialize() error {
	if err := checkFlags(); err != nil {
		fromModule(buildFlags)
		return err
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion
	return nil
}

func checkFlags() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}
	return nil
}

func fromModule(info *Info) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.time":
			info.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildFlags
}

// String formats the information for the version command.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}
