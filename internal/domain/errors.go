// Package domain defines the error values shared by the RSVP and
// check-in services. These sentinels let handlers map each business
// failure to a distinct HTTP status instead of matching on strings.
// Infrastructure errors (storage down, broker down) are not wrapped in
// any of these; they propagate unchanged.
package domain

import "errors"

// ErrNotFound is returned when an event, RSVP or check-in code does not
// exist. Handlers translate it to 404.
var ErrNotFound = errors.New("not found")

// ErrEventCancelled is returned when the target event has been
// cancelled; neither RSVPs nor check-ins are accepted for it.
var ErrEventCancelled = errors.New("event cancelled")

// ErrAlreadyCheckedIn is returned when a check-in row already exists
// for the (event, user) pair.
var ErrAlreadyCheckedIn = errors.New("already checked in")

// ErrCodeExpired is returned when a check-in code's expiry has passed.
var ErrCodeExpired = errors.New("check-in code expired")

// ErrCodeUsageExceeded is returned when a check-in code's usage cap has
// been reached. Record returns it even when an earlier Validate passed,
// since the cap is re-checked at write time.
var ErrCodeUsageExceeded = errors.New("check-in code usage exceeded")

// ErrConflict is returned once the bounded internal retries for a
// contended event are exhausted. It is transient: callers may retry,
// both CreateRsvp and Record are safe to repeat.
var ErrConflict = errors.New("conflict, retry later")
