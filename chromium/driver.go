package chromium

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/log"
)

// ErrDriverNotFound is returned when no chromedriver binary can be found.
var ErrDriverNotFound = errors.New("chromedriver not found")

// DriverInfo describes the chromedriver chosen for a browser.
type DriverInfo struct {
	Path           string
	Version        string
	BrowserVersion string
}

// Matches reports whether driver and browser share the same major version.
// Unknown versions never match.
func (d DriverInfo) Matches() bool {
	dm, derr := MajorVersion(d.Version)
	bm, berr := MajorVersion(d.BrowserVersion)
	return derr == nil && berr == nil && dm == bm
}

var versionRe = regexp.MustCompile(`(\d+)\.\d+(?:\.\d+){0,2}`)

// MajorVersion extracts the major version from the output of
// `chromedriver --version` or `chrome --version`.
func MajorVersion(s string) (int, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("no version in %q", strings.TrimSpace(s))
	}
	return strconv.Atoi(m[1])
}

// ResolveDriver finds the chromedriver binary to use with the browser at
// browserPath. The explicit path wins over QUIZSMOKE_CHROMEDRIVER, which wins
// over $PATH. A major version mismatch between driver and browser is logged,
// not rejected: chromedriver reports it more precisely on session start.
func ResolveDriver(
	ctx context.Context, explicit, browserPath string, lookup env.LookupFunc, logger *log.Logger,
) (DriverInfo, error) {
	path := explicit
	if path == "" {
		path, _ = lookup(env.ChromeDriver)
	}
	if path == "" {
		p, err := exec.LookPath("chromedriver")
		if err != nil {
			return DriverInfo{}, fmt.Errorf("%w in $PATH, set %s", ErrDriverNotFound, env.ChromeDriver)
		}
		path = p
	}

	info := DriverInfo{Path: path}
	out, err := versionOf(ctx, path)
	if err != nil {
		return DriverInfo{}, fmt.Errorf("%w: %w", ErrDriverNotFound, err)
	}
	info.Version = out

	if browserPath != "" {
		if bv, err := versionOf(ctx, browserPath); err != nil {
			logger.Warnf("chromium:ResolveDriver", "reading browser version of %q: %v", browserPath, err)
		} else {
			info.BrowserVersion = bv
		}
	}
	if info.BrowserVersion != "" && !info.Matches() {
		logger.Warnf("chromium:ResolveDriver",
			"chromedriver %q does not match browser %q, sessions may fail to start", info.Version, info.BrowserVersion)
	}
	logger.Debugf("chromium:ResolveDriver", "driver:%q version:%q browser:%q", info.Path, info.Version, info.BrowserVersion)

	return info, nil
}

func versionOf(ctx context.Context, bin string) (string, error) {
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("running %s --version: %w", bin, err)
	}
	return strings.TrimSpace(string(out)), nil
}
