package common

import (
	"fmt"
	"time"
)

// LaunchOptions stores browser launch options.
type LaunchOptions struct {
	Args               []string
	Debug              bool
	Env                map[string]string
	ExecutablePath     string
	DriverPath         string
	Headless           bool
	NoSandbox          bool
	DisableDevShmUsage bool
	IgnoreDefaultArgs  []string
	// RemoteURL points to an already running browser (CDP websocket) or
	// WebDriver server. No process is spawned when it is set.
	RemoteURL string
	SlowMo    time.Duration
	Timeout   time.Duration
}

// NewLaunchOptions returns launch options suited to containers and CI
// runners: headless, without the sandbox and without /dev/shm.
func NewLaunchOptions() *LaunchOptions {
	return &LaunchOptions{
		Env:                make(map[string]string),
		Headless:           true,
		NoSandbox:          true,
		DisableDevShmUsage: true,
		Timeout:            DefaultTimeout,
	}
}

// Validate reports options that no backend can honour.
func (l *LaunchOptions) Validate() error {
	if l.Timeout < 0 {
		return fmt.Errorf("launch timeout must not be negative, got %s", l.Timeout)
	}
	if l.SlowMo < 0 {
		return fmt.Errorf("slowMo must not be negative, got %s", l.SlowMo)
	}
	return nil
}

// IsRemote returns true when the options point to a remote browser.
func (l *LaunchOptions) IsRemote() bool {
	return l.RemoteURL != ""
}
