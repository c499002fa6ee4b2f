package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	// ErrTimeout is returned when the upstream did not answer in time
	ErrTimeout = errors.New("upstream timeout")
	// ErrNetwork covers connection failures and broken transfers
	ErrNetwork = errors.New("upstream network error")
	// ErrTooLarge is returned when a body exceeds the configured cap
	ErrTooLarge = errors.New("upstream response too large")
	// ErrUnavailable is returned while the host's circuit breaker is open
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrTooManyRedirects is returned when the redirect chain is too long
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrDecode is returned for bodies in an unknown or corrupt encoding
	ErrDecode = errors.New("cannot decode upstream body")
)

// RedirectError reports a redirect hop refused by the redirect check.
type RedirectError struct {
	URL *url.URL
	Err error
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s refused: %v", e.URL.Redacted(), e.Err)
}

func (e *RedirectError) Unwrap() error { return e.Err }

// classify maps transport errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var redirect *RedirectError
	if errors.As(err, &redirect) {
		return redirect
	}
	for _, known := range []error{ErrTooManyRedirects, ErrTooLarge, ErrDecode} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// countsAgainstHost reports whether err says something about the host's health.
func countsAgainstHost(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork)
}

func isTransportError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
