package common

import "time"

// TimeoutSettings holds information on timeout settings.
type TimeoutSettings struct {
	parent                   *TimeoutSettings
	defaultTimeout           *time.Duration
	defaultNavigationTimeout *time.Duration
	defaultExpectTimeout     *time.Duration
}

// NewTimeoutSettings creates a new timeout settings object.
func NewTimeoutSettings(parent *TimeoutSettings) *TimeoutSettings {
	return &TimeoutSettings{parent: parent}
}

// SetDefaultTimeout sets the timeout of clicks and other single actions.
func (t *TimeoutSettings) SetDefaultTimeout(timeout time.Duration) {
	t.defaultTimeout = &timeout
}

// SetDefaultNavigationTimeout sets the timeout of page loads.
func (t *TimeoutSettings) SetDefaultNavigationTimeout(timeout time.Duration) {
	t.defaultNavigationTimeout = &timeout
}

// SetDefaultExpectTimeout sets the timeout of polled expectations.
func (t *TimeoutSettings) SetDefaultExpectTimeout(timeout time.Duration) {
	t.defaultExpectTimeout = &timeout
}

// NavigationTimeout falls back to the default timeout, then to the parent.
func (t *TimeoutSettings) NavigationTimeout() time.Duration {
	if t.defaultNavigationTimeout != nil {
		return *t.defaultNavigationTimeout
	}
	if t.defaultTimeout != nil {
		return *t.defaultTimeout
	}
	if t.parent != nil {
		return t.parent.NavigationTimeout()
	}
	return DefaultTimeout
}

// Timeout returns the timeout of single actions.
func (t *TimeoutSettings) Timeout() time.Duration {
	if t.defaultTimeout != nil {
		return *t.defaultTimeout
	}
	if t.parent != nil {
		return t.parent.Timeout()
	}
	return DefaultTimeout
}

// ExpectTimeout returns the timeout of polled expectations. Unlike the
// navigation timeout it does not inherit the action timeout.
func (t *TimeoutSettings) ExpectTimeout() time.Duration {
	if t.defaultExpectTimeout != nil {
		return *t.defaultExpectTimeout
	}
	if t.parent != nil {
		return t.parent.ExpectTimeout()
	}
	return DefaultExpectTimeout
}
