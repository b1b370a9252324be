// Package chromium knows how Chromium based browsers are found, launched and
// paired with a chromedriver binary. The automation backends share it so that
// every engine starts the browser with the same command line.
package chromium

import (
	"fmt"
	"sort"
	"strings"

	"github.com/liuxd6825/quizsmoke/common"
)

// PrepareFlags returns the browser command line flags for lopts, after
// Puppeteer's and Playwright's default behavior. Boolean values toggle a
// flag, string values are passed as --name=value.
func PrepareFlags(lopts *common.LaunchOptions) map[string]any {
	f := map[string]any{
		"disable-background-networking":                      true,
		"enable-features":                                    "NetworkService,NetworkServiceInProcess",
		"disable-background-timer-throttling":                true,
		"disable-backgrounding-occluded-windows":             true,
		"disable-breakpad":                                   true,
		"disable-component-extensions-with-background-pages": true,
		"disable-default-apps":                               true,
		"disable-dev-shm-usage":                              lopts.DisableDevShmUsage,
		"disable-extensions":                                 true,
		//nolint:lll
		"disable-features":                "ImprovedCookieControls,LazyFrameLoading,GlobalMediaControls,DestroyProfileOnBrowserClose,MediaRouter,AcceptCHFrame",
		"disable-hang-monitor":            true,
		"disable-ipc-flooding-protection": true,
		"disable-popup-blocking":          true,
		"disable-prompt-on-repost":        true,
		"disable-renderer-backgrounding":  true,
		"force-color-profile":             "srgb",
		"metrics-recording-only":          true,
		"no-first-run":                    true,
		"enable-automation":               true,
		"password-store":                  "basic",
		"use-mock-keychain":               true,
		"no-service-autorun":              true,
		"no-default-browser-check":        true,
		"no-sandbox":                      lopts.NoSandbox,
		"headless":                        lopts.Headless,
		"window-size":                     fmt.Sprintf("%d,%d", 1280, 800),
	}
	if lopts.Headless {
		f["hide-scrollbars"] = true
		f["mute-audio"] = true
		f["blink-settings"] = "primaryHoverType=2,availableHoverTypes=2,primaryPointerType=4,availablePointerTypes=4"
	}
	ignoreDefaultArgsFlags(f, lopts.IgnoreDefaultArgs)
	setFlagsFromArgs(f, lopts.Args)

	return f
}

// ParseArgs turns flags into sorted command line arguments. Disabled
// boolean flags are left out.
func ParseArgs(flags map[string]any) ([]string, error) {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names))
	for _, name := range names {
		switch value := flags[name].(type) {
		case string:
			if value == "" {
				args = append(args, "--"+name)
				continue
			}
			args = append(args, fmt.Sprintf("--%s=%s", name, value))
		case bool:
			if value {
				args = append(args, "--"+name)
			}
		default:
			return nil, fmt.Errorf(`invalid browser command line flag: "%s=%v"`, name, value)
		}
	}
	return args, nil
}

// ignoreDefaultArgsFlags ignores any flags in the provided slice.
func ignoreDefaultArgsFlags(flags map[string]any, toIgnore []string) {
	for _, name := range toIgnore {
		delete(flags, strings.TrimPrefix(name, "--"))
	}
}

// setFlagsFromArgs fills flags by parsing the "arg=value" args slice.
func setFlagsFromArgs(flags map[string]any, args []string) {
	var argname, argval string
	for _, arg := range args {
		pair := strings.SplitN(arg, "=", 2)
		argname, argval = strings.TrimPrefix(strings.TrimSpace(pair[0]), "--"), ""
		if len(pair) > 1 {
			argval = TrimQuotes(strings.TrimSpace(pair[1]))
		}
		flags[argname] = argval
	}
}

// TrimQuotes removes one pair of matching surrounding quotes.
func TrimQuotes(s string) string {
	if len(s) >= 2 {
		if c := s[len(s)-1]; s[0] == c && (c == '"' || c == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
