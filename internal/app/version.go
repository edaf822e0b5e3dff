package app

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Version is the release version, injected at build time via
// -ldflags "-X github.com/datamon/datamon/internal/app.Version=v1.2.3".
var Version = "dev"

// HasVersionFlag reports whether args request the version.
func HasVersionFlag(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "-version", "--version":
			return true
		}
	}
	return false
}

// PrintVersion writes the version line. When no version was injected it
// falls back to the module build info.
func PrintVersion(out io.Writer) {
	v := Version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	fmt.Fprintf(out, "datamon %s\n", v)
}
