package chromium

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/liuxd6825/quizsmoke/env"
)

// candidates lists the well known browser binary names and install
// locations, in order of preference.
func candidates(lookup env.LookupFunc) []string {
	home, _ := lookup("USERPROFILE")
	return []string{
		// Unix-like
		"headless_shell",
		"headless-shell",
		"chromium",
		"chromium-browser",
		"google-chrome",
		"google-chrome-stable",
		"google-chrome-beta",
		"google-chrome-unstable",
		"/usr/bin/google-chrome",

		// Windows
		"chrome",
		"chrome.exe", // in case PATHEXT is misconfigured
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		filepath.Join(home, `AppData\Local\Google\Chrome\Application\chrome.exe`),

		// Mac
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	}
}

// ExecutablePath returns the browser binary to launch: QUIZSMOKE_BROWSER_EXECUTABLE
// when set, otherwise the first candidate found. It returns an empty string
// when no browser is installed.
func ExecutablePath(lookup env.LookupFunc) string {
	if p, ok := lookup(env.ExecutablePath); ok && p != "" {
		return p
	}
	for _, path := range candidates(lookup) {
		if p, err := exec.LookPath(path); err == nil {
			return p
		}
	}
	return ""
}

// Available reports whether a browser can be launched locally.
func Available(lookup env.LookupFunc) bool {
	p := ExecutablePath(lookup)
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
