package party

import (
	"errors"
	"fmt"
)

// Kind names a class of failure reported to clients in error events.
type Kind string

// Error kinds understood by clients.
const (
	KindGuild        Kind = "GuildError"
	KindRequest      Kind = "RequestError"
	KindIndex        Kind = "IndexError"
	KindTimeRange    Kind = "TimeRangeError"
	KindInvalidVideo Kind = "InvalidVideoError"
	KindNotFound     Kind = "NotFoundError"
	KindInternal     Kind = "Error"
)

// Error is a business-rule or validation failure. Operations that return an
// *Error have not mutated any session state.
type Error struct {
	Kind    Kind
	Message string
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is an *Error of the same kind.
//
// This allows errors.Is(err, &Error{Kind: KindIndex}) to match any index
// error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrSessionClosed is returned by Session.Join once the session has been
	// emptied and handed back to the registry.
	ErrSessionClosed = errors.New("party: session closed")

	// ErrNotMember is returned when an operation names a connection that is
	// not a current member of the session.
	ErrNotMember = &Error{Kind: KindNotFound, Message: "not a member of this session"}

	// ErrTrackNotFound is returned by resolvers when nothing matches.
	ErrTrackNotFound = errors.New("party: track not found")

	// ErrInvalidTrackID is returned by resolvers for malformed identifiers.
	ErrInvalidTrackID = errors.New("party: invalid track id")
)

// Messages sent for resolver failures. Upstream error text stays in the logs.
const (
	trackNotFoundMessage  = "no track matched the request"
	invalidTrackIDMessage = "track id is not valid"
)

// describe returns the kind and client-facing message for err. known is
// false when err is unexpected.
func describe(err error) (kind Kind, message string, known bool) {
	var pe *Error
	switch {
	case errors.As(err, &pe):
		return pe.Kind, pe.Message, true
	case errors.Is(err, ErrTrackNotFound):
		return KindNotFound, trackNotFoundMessage, true
	case errors.Is(err, ErrInvalidTrackID):
		return KindInvalidVideo, invalidTrackIDMessage, true
	default:
		return KindInternal, internalMessage, false
	}
}

// KindOf classifies err for reporting. The second result is false when err
// is unexpected and its text must not reach clients.
func KindOf(err error) (Kind, bool) {
	kind, _, known := describe(err)
	return kind, known
}
