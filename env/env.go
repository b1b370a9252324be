// Package env holds the environment variable names and lookup helpers
// shared by the suites, the CLI and the configuration layer.
package env

import (
	"os"
	"strconv"
	"strings"
)

const (
	// BaseURL points the suites at an already running quiz application.
	// When it is not set, the suites serve the bundled quiz site themselves.
	BaseURL = "QUIZSMOKE_BASE_URL"

	// Backend selects the automation backend used by the CLI.
	Backend = "QUIZSMOKE_BACKEND"

	// Headless toggles headless browser mode.
	Headless = "QUIZSMOKE_HEADLESS"

	// BrowserWSURL makes CDP and Playwright backends connect to a remote
	// browser instead of launching one.
	BrowserWSURL = "QUIZSMOKE_BROWSER_WS_URL"

	// WebDriverURL makes the Selenium backend use a remote WebDriver server.
	WebDriverURL = "QUIZSMOKE_WEBDRIVER_URL"

	// ChromeDriver is an explicit path to the chromedriver binary.
	ChromeDriver = "QUIZSMOKE_CHROMEDRIVER"

	// ExecutablePath is an explicit path to the browser binary.
	ExecutablePath = "QUIZSMOKE_BROWSER_EXECUTABLE"

	// LogLevel sets the level of the category logger.
	LogLevel = "QUIZSMOKE_LOG"

	// LogCaller enables caller reporting in log entries.
	LogCaller = "QUIZSMOKE_LOG_CALLER"

	// Config is the path of the YAML configuration file.
	Config = "QUIZSMOKE_CONFIG"

	// TracesMetadata holds comma separated key=value pairs attached to
	// every span, e.g. "team=qa,ci=true".
	TracesMetadata = "QUIZSMOKE_TRACES_METADATA"
)

// LookupFunc defines a function to look up a key from the environment.
type LookupFunc func(key string) (string, bool)

// Lookup is the default LookupFunc backed by the process environment.
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// EmptyLookup finds nothing. Useful in tests.
func EmptyLookup(string) (string, bool) { return "", false }

// MapLookup returns a LookupFunc backed by the given map.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// LookupBool returns the boolean value of key. Unset or unparsable values
// yield def.
func LookupBool(lookup LookupFunc, key string, def bool) bool {
	v, ok := lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// IsRemoteBrowser returns the remote browser URL and true when set
// through the given key. The value may be a comma separated list of
// URLs, in which case the first non-empty one is used.
func IsRemoteBrowser(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	for _, u := range strings.Split(v, ",") {
		if u = strings.TrimSpace(u); u != "" {
			return u, true
		}
	}
	return "", false
}
