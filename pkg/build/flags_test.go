// SPDX-License-Identifier: MIT
package build

import (
	"runtime/debug"
	"testing"
)

// setFlags replaces the linker-injected values and a fresh Info for the
// duration of the test.
func setFlags(t *testing.T, name, time, commit, version string) {
	t.Helper()
	saved := [4]string{buildName, buildTime, buildCommit, buildVersion}
	savedInfo := buildFlags
	t.Cleanup(func() {
		buildName, buildTime, buildCommit, buildVersion = saved[0], saved[1], saved[2], saved[3]
		buildFlags = savedInfo
	})

	buildName, buildTime, buildCommit, buildVersion = name, time, commit, version
	buildFlags = &Info{Name: "dfttest", Description: description, Time: "unknown", Commit: "unknown", Version: "unknown"}
}

func TestInitializeUsesLinkerFlags(t *testing.T) {
	setFlags(t, "dfttest-ci", "2026-03-01T10:00:00Z", "0badc0de", "v0.4.1")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() unexpected error: %v", err)
	}

	want := Info{Name: "dfttest-ci", Description: description, Time: "2026-03-01T10:00:00Z", Commit: "0badc0de", Version: "v0.4.1"}
	if got := *GetBuildFlags(); got != want {
		t.Errorf("GetBuildFlags() = %+v, want %+v", got, want)
	}
}

func TestInitializeFallsBackToModuleInfo(t *testing.T) {
	missing := map[string]func(){
		"BuildName is required":    func() { buildName = "" },
		"BuildTime is required":    func() { buildTime = "" },
		"BuildCommit is required":  func() { buildCommit = "" },
		"BuildVersion is required": func() { buildVersion = "" },
	}

	for wantErr, clearFlag := range missing {
		t.Run(wantErr, func(t *testing.T) {
			setFlags(t, "ldname", "ldtime", "ldcommit", "ldversion")
			clearFlag()

			err := Initialize()
			if err == nil || err.Error() != wantErr {
				t.Fatalf("Initialize() error = %v, want %q", err, wantErr)
			}

			// No linker value may leak in when any is missing.
			info := GetBuildFlags()
			if info.Name != "dfttest" {
				t.Errorf("Name = %q, want dfttest", info.Name)
			}
			for _, v := range []string{info.Time, info.Commit, info.Version} {
				if v == "ldtime" || v == "ldcommit" || v == "ldversion" {
					t.Errorf("linker value %q used after a failed Initialize", v)
				}
			}
		})
	}
}

func TestFromModule(t *testing.T) {
	info := &Info{Time: "unknown", Commit: "unknown", Version: "unknown"}
	fromModule(info)

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		if *info != (Info{Time: "unknown", Commit: "unknown", Version: "unknown"}) {
			t.Errorf("fromModule() changed %+v without build info", info)
		}
		return
	}

	wantVersion := "unknown"
	if bi.Main.Version != "" {
		wantVersion = bi.Main.Version
	}
	if info.Version != wantVersion {
		t.Errorf("Version = %q, want %q", info.Version, wantVersion)
	}

	wantCommit, wantTime := "unknown", "unknown"
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			wantCommit = s.Value
		case "vcs.time":
			wantTime = s.Value
		}
	}
	if info.Commit != wantCommit || info.Time != wantTime {
		t.Errorf("Commit, Time = %q, %q, want %q, %q", info.Commit, info.Time, wantCommit, wantTime)
	}
}

func TestInfoString(t *testing.T) {
	info := &Info{Name: "dfttest", Version: "v0.3.0", Commit: "abc123", Time: "2026-01-02"}
	want := "dfttest v0.3.0 (commit abc123, built 2026-01-02)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
