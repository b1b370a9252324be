// Package consts houses some constants needed across quizsmoke.
package consts

import (
	"fmt"
	"runtime"
	"strings"
)

// Version contains the current semantic version of quizsmoke.
const Version = "0.3.0"

// VersionDetails can be set externally as part of the build process.
var VersionDetails = "" //nolint:gochecknoglobals

// FullVersion returns the maximally full version and build information for
// the currently running binary.
func FullVersion() string {
	goVersionArch := fmt.Sprintf("%s, %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if VersionDetails != "" {
		return fmt.Sprintf("%s (%s, %s)", Version, VersionDetails, goVersionArch)
	}
	return fmt.Sprintf("%s (dev build, %s)", Version, goVersionArch)
}

// Banner returns the ASCII-art banner with the quizsmoke logo.
func Banner() string {
	banner := strings.Join([]string{
		`   ____        _                           __      `,
		`  / __ \__  __(_)___   _________ ___  ____/ /_____ `,
		` / / / / / / / /_  /  / ___/ __ '__ \/ __  //_/ _ \`,
		`/ /_/ / /_/ / / / /_ (__  ) / / / / / /_/ ,< /  __/`,
		`\___\_\__,_/_/ /___//____/_/ /_/ /_/\__,_/|_|\___/ `,
	}, "\n")

	return banner
}
