package common

import (
	"context"
	"time"
)

// TimeoutFromContext returns def, shortened to the time left before ctx's
// deadline. Engines that do not accept a context take it as their own
// timeout argument.
func TimeoutFromContext(ctx context.Context, def time.Duration) time.Duration {
	dl, ok := ctx.Deadline()
	if !ok {
		return def
	}
	left := time.Until(dl)
	if left <= 0 {
		return time.Millisecond
	}
	if def <= 0 || left < def {
		return left
	}
	return def
}

// Prober is implemented by sessions that can tell whether the browser
// they drove is still running, also after Close.
type Prober interface {
	Alive(ctx context.Context) bool
}
