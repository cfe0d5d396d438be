package version

import (
	"fmt"
	"runtime"
)

// Заполняются при сборке через -ldflags -X.
var (
	Release   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo снимок сведений о сборке.
type BuildInfo struct {
	Release   string
	Commit    string
	Date      string
	GoVersion string
}

// Current возвращает сведения о текущей сборке.
func Current() BuildInfo {
	return BuildInfo{
		Release:   Release,
		Commit:    GitCommit,
		Date:      BuildDate,
		GoVersion: runtime.Version(),
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("release=%s commit=%s date=%s go=%s", b.Release, b.Commit, b.Date, b.GoVersion)
}
