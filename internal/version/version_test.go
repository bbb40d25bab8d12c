package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func buildInfo(mainVersion string, settings ...debug.BuildSetting) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			GoVersion: "go1.24.2",
			Main:      debug.Module{Path: "github.com/vladislavdragonenkov/foodorder", Version: mainVersion},
			Settings:  settings,
		}, true
	}
}

func noBuildInfo() (*debug.BuildInfo, bool) { return nil, false }

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		v, c, d  string
		readInfo func() (*debug.BuildInfo, bool)
		want     Build
	}{
		{
			name:     "ldflags win over build info",
			v:        "v1.4.0",
			c:        "abc123",
			d:        "2026-01-02",
			readInfo: buildInfo("v0.0.1", debug.BuildSetting{Key: "vcs.revision", Value: "ffffffffffffffff"}),
			want:     Build{Version: "v1.4.0", Commit: "abc123", Date: "2026-01-02", GoVersion: "go1.24.2"},
		},
		{
			name: "vcs settings fill the gaps",
			readInfo: buildInfo("(devel)",
				debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				debug.BuildSetting{Key: "vcs.time", Value: "2026-03-04T05:06:07Z"},
				debug.BuildSetting{Key: "vcs.modified", Value: "true"},
			),
			want: Build{Version: "dev", Commit: "0123456789ab", Date: "2026-03-04T05:06:07Z", GoVersion: "go1.24.2", Modified: true},
		},
		{
			name:     "module version from go install",
			readInfo: buildInfo("v1.2.3"),
			want:     Build{Version: "v1.2.3", Commit: unknown, Date: unknown, GoVersion: "go1.24.2"},
		},
		{
			name:     "no build info",
			readInfo: noBuildInfo,
			want:     Build{Version: "dev", Commit: unknown, Date: unknown, GoVersion: unknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.v, tt.c, tt.d, tt.readInfo)
			if got != tt.want {
				t.Errorf("resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildString(t *testing.T) {
	b := Build{Version: "v1.0.0", Commit: "abc", Date: "today", GoVersion: "go1.24.2"}
	if got := b.String(); got != "foodorder v1.0.0 (commit abc, built today, go1.24.2)" {
		t.Errorf("String() = %q", got)
	}

	b.Modified = true
	if !strings.HasSuffix(b.String(), " modified") {
		t.Errorf("modified build should be marked: %q", b.String())
	}
}

func TestBuildFields(t *testing.T) {
	fields := Build{Version: "v1.0.0", Commit: "abc", Date: "today", GoVersion: "go1.24.2"}.Fields()
	for key, want := range map[string]string{"version": "v1.0.0", "commit": "abc", "build_date": "today", "go_version": "go1.24.2"} {
		if fields[key] != want {
			t.Errorf("Fields()[%q] = %v, want %q", key, fields[key], want)
		}
	}
}

func TestGetIsStable(t *testing.T) {
	first := Get()
	if first.Version == "" || first.Commit == "" || first.Date == "" {
		t.Fatalf("Get() returned empty fields: %+v", first)
	}
	if Get() != first {
		t.Error("Get() should be computed once")
	}
	if GetVersion() != first.Version {
		t.Errorf("GetVersion() = %q, want %q", GetVersion(), first.Version)
	}
}
