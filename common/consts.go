package common

import "time"

const (
	// DefaultTimeout bounds provisioning, navigation and clicks.
	DefaultTimeout time.Duration = 30 * time.Second

	// DefaultExpectTimeout bounds polled expectations when nothing else is set.
	DefaultExpectTimeout time.Duration = 5 * time.Second

	// DefaultPollInterval is the delay between two evaluations of a polled
	// expectation.
	DefaultPollInterval time.Duration = 100 * time.Millisecond
)
