package doc

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so HTTP collaborators can translate them
// without inspecting messages.
type Kind int

const (
	KindInvalid Kind = iota + 1
	KindNotFound
	KindForbidden
	KindConflict
	KindLocked
	KindInternalMisuse
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "notfound"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindLocked:
		return "locked"
	case KindInternalMisuse:
		return "internal misuse"
	}
	return "unknown"
}

// Error is a kinded failure. Wrapped causes stay reachable via errors.Is/As.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of an error, or 0 when it carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.As(err, new(*LockedError)) {
		return KindLocked
	}
	return 0
}

// LockedError reports an advisory-lock conflict. Self is set when the same
// username holds the lock under a different session token; otherwise Username
// and Title identify the competing editor.
type LockedError struct {
	Self     bool
	Username string
	Title    string
}

func (e *LockedError) Error() string {
	if e.Self {
		return "locked: held by another session of the same user"
	}
	return fmt.Sprintf("locked: held by %s", e.Username)
}
