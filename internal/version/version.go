// Package version описывает сборку сервиса. Значения задаются через -ldflags
// (-X github.com/vladislavdragonenkov/foodorder/internal/version.version=v1.2.0),
// а без них берутся из debug.BuildInfo.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	version = ""
	commit  = ""
	date    = ""
)

const unknown = "unknown"

// Build — сведения о сборке.
type Build struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
	Modified  bool
}

var current = sync.OnceValue(func() Build {
	return resolve(version, commit, date, debug.ReadBuildInfo)
})

// Get возвращает сведения о текущей сборке.
func Get() Build { return current() }

// GetVersion возвращает версию сборки, "dev" для локальной.
func GetVersion() string { return Get().Version }

func (b Build) String() string {
	s := fmt.Sprintf("foodorder %s (commit %s, built %s, %s)", b.Version, b.Commit, b.Date, b.GoVersion)
	if b.Modified {
		s += " modified"
	}
	return s
}

// Fields — поля для стартового лога.
func (b Build) Fields() log.Fields {
	return log.Fields{
		"version":    b.Version,
		"commit":     b.Commit,
		"build_date": b.Date,
		"go_version": b.GoVersion,
	}
}

func resolve(v, c, d string, readInfo func() (*debug.BuildInfo, bool)) Build {
	b := Build{Version: v, Commit: c, Date: d, GoVersion: unknown}

	if info, ok := readInfo(); ok && info != nil {
		b.GoVersion = info.GoVersion
		if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = s.Value
				}
			case "vcs.time":
				if b.Date == "" {
					b.Date = s.Value
				}
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}

	if b.Version == "" {
		b.Version = "dev"
	}
	if b.Commit == "" {
		b.Commit = unknown
	}
	if len(b.Commit) > 12 {
		b.Commit = b.Commit[:12]
	}
	if b.Date == "" {
		b.Date = unknown
	}
	return b
}
