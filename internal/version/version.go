package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X github.com/MrSnakeDoc/marksync/internal/version.Version=v0.1.0".
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
	GoVersion = runtime.Version()
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "" && len(s.Value) >= 7 {
				Commit = s.Value[:7]
			}
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = s.Value
			}
		}
	}
}

// String is the one-line build description printed by `marksync version`.
func String() string {
	commit, built := Commit, BuildDate
	if commit == "" {
		commit = "none"
	}
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("marksync %s (commit=%s, built=%s, go=%s)", Version, commit, built, GoVersion)
}
