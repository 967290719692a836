package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.1.0
	Commit    = "none"                          // ex: abcd123
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version()               // go version
)

const (
	// Protocol is the NPDS/TP version spoken by the tracker.
	Protocol = 1

	// ServerDesc names the product in ABOUT replies and logs.
	ServerDesc = "NPDS Tracker Server for Go"
)

// ServerString is sent in the Server header of the status page.
func ServerString() string {
	return "NPDS Tracker Server " + Version
}

// UserAgent is sent with health check probes.
func UserAgent() string {
	return fmt.Sprintf("Mozilla/5.0 (compatible; %s; Go)", ServerString())
}

// About is the "about:" line of an ABOUT reply.
func About() string {
	return fmt.Sprintf("%s version %s running on %s %s %s",
		ServerDesc, Version, GoVersion, runtime.GOOS, runtime.GOARCH)
}
