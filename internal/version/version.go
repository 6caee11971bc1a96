package version

import "fmt"

// Set at build time via -ldflags "-X otterlive/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = ""
)

func String() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
