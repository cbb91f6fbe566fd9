// Package version holds the build-time version variables for the cdaudit
// binary. Release builds set them with -ldflags "-X ...".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns the text printed by cdaudit version.
func Info() string {
	return fmt.Sprintf(
		"cdaudit version %s\ncommit: %s\nbuilt: %s\ngo: %s %s/%s\n",
		Version,
		Commit,
		Date,
		runtime.Version(),
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// UserAgent is sent on every engine and identity request.
func UserAgent() string {
	return "cdaudit/" + Version
}
