// Package crawlerr defines the crawl engine's error taxonomy.
//
// Every error returned across a crawl boundary wraps one of the
// sentinel kinds below so callers can branch with errors.Is while
// still recovering structured detail with errors.As.
package crawlerr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of crawl failure.
type Kind string

const (
	KindInput           Kind = "input_error"
	KindRobotsDisallow  Kind = "robots_disallow"
	KindBrowserLaunch   Kind = "browser_launch_error"
	KindNavigation      Kind = "navigation_error"
	KindWaitTimeout     Kind = "wait_timeout"
	KindScript          Kind = "script_error"
	KindExtraction      Kind = "extraction_error"
	KindRateLimited     Kind = "rate_limited"
	KindCache           Kind = "cache_error"
	KindCancelled       Kind = "cancelled"
	KindInternal        Kind = "internal_error"
)

var sentinels = map[Kind]error{
	KindInput:          errors.New("input error"),
	KindRobotsDisallow: errors.New("disallowed by robots.txt"),
	KindBrowserLaunch:  errors.New("browser launch failed"),
	KindNavigation:     errors.New("navigation failed"),
	KindWaitTimeout:    errors.New("wait condition timed out"),
	KindScript:         errors.New("script execution failed"),
	KindExtraction:     errors.New("extraction failed"),
	KindRateLimited:    errors.New("rate limited"),
	KindCache:          errors.New("cache error"),
	KindCancelled:      errors.New("cancelled"),
	KindInternal:       errors.New("internal error"),
}

// Error is a crawl failure carrying a Kind, a URL it happened on (if
// known), and the underlying cause.
type Error struct {
	Kind    Kind
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.URL)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the kind's sentinel so errors.Is(err, crawlerr.Sentinel(kind))
// matches regardless of message/cause, and falls back to the wrapped
// cause for errors.As chains into driver-specific errors.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := sentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// New builds an Error of the given kind.
func New(kind Kind, url, message string, cause error) *Error {
	return &Error{Kind: kind, URL: url, Message: message, Cause: cause}
}

// Is reports whether err ultimately carries the given kind.
func Is(err error, kind Kind) bool {
	sentinel, ok := sentinels[kind]
	if !ok {
		return false
	}
	return errors.Is(err, sentinel)
}

// KindOf extracts the Kind from err, if it (or something it wraps) is
// a *Error. Returns KindInternal and false if not found.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return KindInternal, false
}
