package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

var (
	// ErrNotStarted is returned by Observe before Start.
	ErrNotStarted = errors.New("engine not started")

	// ErrUnsupportedSelector is returned when a locator cannot be
	// evaluated by the engine, e.g. XPath on the http engine.
	ErrUnsupportedSelector = errors.New("selector not supported by this engine")

	// ErrBrowserGone indicates the browser process or context died and the
	// engine needs a restart.
	ErrBrowserGone = errors.New("browser context is gone")
)

// OpError wraps a failed engine operation with its engine and operation
// name.
type OpError struct {
	Engine string
	Op     string
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(engine, op string, err error) error {
	return &OpError{Engine: engine, Op: op, Err: err}
}

// IsRetryable reports whether the error is of the transient class
// (timeouts, connection resets) where the next poll may simply succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	// chromedp surfaces websocket transport failures as plain strings.
	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "broken pipe")
}
