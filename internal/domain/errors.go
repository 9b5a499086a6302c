package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails a static business rule
// (e.g. blank title, non-positive price).
var ErrValidation = errors.New("validation error")

// ErrPrecondition is the class of state-machine violations: the request is
// well-formed but the group or participant is in the wrong state for it.
// These are never retried; retrying without an external change fails the same way.
var ErrPrecondition = errors.New("precondition failed")

// ErrForbidden is returned when the caller is not allowed to act on a group.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a concurrent mutation of the same group won the
// race and the bounded retry budget is exhausted.
var ErrConflict = errors.New("concurrent modification")

// Not-found errors. Both match errors.Is(err, ErrNotFound).
var (
	ErrGroupNotFound       = fmt.Errorf("group %w", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
)

// Input errors. Both match errors.Is(err, ErrValidation).
var (
	ErrInvalidClosingDate = fmt.Errorf("%w: closing date must be after tomorrow", ErrValidation)
	ErrInvalidCapacity    = fmt.Errorf("%w: max participants must be at least 1", ErrValidation)
)

// State-machine errors. All match errors.Is(err, ErrPrecondition).
var (
	ErrImmutableWithParticipants = fmt.Errorf("%w: title, price and capacity cannot change once a participant is approved", ErrPrecondition)
	ErrHasParticipants           = fmt.Errorf("%w: group has approved participants", ErrPrecondition)
	ErrNotRecruiting             = fmt.Errorf("%w: group is not recruiting", ErrPrecondition)
	ErrFull                      = fmt.Errorf("%w: group is full", ErrPrecondition)
	ErrAlreadyJoined             = fmt.Errorf("%w: user already joined this group", ErrPrecondition)
	ErrAlreadyApproved           = fmt.Errorf("%w: participant already approved", ErrPrecondition)
	ErrNotCancellable            = fmt.Errorf("%w: only pending requests can be cancelled", ErrPrecondition)
	ErrNotPending                = fmt.Errorf("%w: only pending requests can be rejected", ErrPrecondition)
	ErrNotApproved               = fmt.Errorf("%w: participant is not approved", ErrPrecondition)
	ErrNotPaid                   = fmt.Errorf("%w: participant has not paid", ErrPrecondition)
)

// ErrNotHost is returned when a host-only action is attempted by someone else.
// The group's existence is not hidden: a missing group is reported as
// ErrGroupNotFound before host checks run.
var ErrNotHost = fmt.Errorf("%w: only the host can do this", ErrForbidden)
