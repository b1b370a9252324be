// Package driver maps backend names to session provisioners.
package driver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/driver/cdp"
	"github.com/liuxd6825/quizsmoke/driver/pw"
	"github.com/liuxd6825/quizsmoke/driver/static"
	"github.com/liuxd6825/quizsmoke/driver/wd"
	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/log"
)

// ErrUnknownBackend is returned for backend names no provisioner serves.
var ErrUnknownBackend = errors.New("unknown backend")

var constructors = map[string]func(*log.Logger, env.LookupFunc) common.Provisioner{
	pw.Name:     func(l *log.Logger, _ env.LookupFunc) common.Provisioner { return pw.New(l) },
	wd.Name:     func(l *log.Logger, lookup env.LookupFunc) common.Provisioner { return wd.New(l, lookup) },
	cdp.Name:    func(l *log.Logger, lookup env.LookupFunc) common.Provisioner { return cdp.New(l, lookup) },
	static.Name: func(l *log.Logger, _ env.LookupFunc) common.Provisioner { return static.New(l, nil) },
}

// Names returns the supported backend names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New returns the provisioner of the named backend.
func New(name string, logger *log.Logger, lookup env.LookupFunc) (common.Provisioner, error) {
	c, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, should be one of %v", ErrUnknownBackend, name, Names())
	}
	return c(logger, lookup), nil
}

// RemoteURLKey returns the environment variable that points the named
// backend at a remote browser or WebDriver server.
func RemoteURLKey(name string) string {
	switch name {
	case wd.Name:
		return env.WebDriverURL
	case pw.Name, cdp.Name:
		return env.BrowserWSURL
	default:
		return ""
	}
}
