package domain

import "errors"

var (
	// ErrNotFound means the referenced local row is absent (or not in a state
	// the operation applies to).
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable wraps network and non-success HTTP failures of
	// any external collaborator.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedUpstreamData wraps payloads whose shape we cannot decode.
	ErrMalformedUpstreamData = errors.New("malformed upstream data")

	// ErrMarkConflict is returned when the high-water mark moved under us.
	ErrMarkConflict = errors.New("high-water mark changed concurrently")

	ErrInvalidState      = errors.New("invalid or expired link state")
	ErrInvalidMeetingURL = errors.New("invalid meeting url")
)
