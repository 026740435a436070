package table

import (
	"errors"
	"strings"
)

// Rejection classes. Operations wrap these with a user-facing message, so callers
// match with errors.Is and display with RejectionMessage.
var (
	ErrValidation          = errors.New("validation error")
	ErrIllegalTransition   = errors.New("illegal transition")
	ErrNotInGame           = errors.New("not in game")
	ErrScoreMismatch       = errors.New("scores do not match")
	ErrInternalConsistency = errors.New("internal consistency error")
)

// Lookup and authentication errors.
var (
	ErrTeamNotFound  = errors.New("team not found")
	ErrWrongPassword = errors.New("wrong password")
)

// rejection carries a display message alongside its class.
type rejection struct {
	class error
	msg   string
}

func (r *rejection) Error() string { return r.msg }
func (r *rejection) Unwrap() error { return r.class }

func reject(class error, msg string) error {
	return &rejection{class: class, msg: msg}
}

// RejectionMessage returns a message suitable for showing to a user.
func RejectionMessage(err error) string {
	if err == nil {
		return ""
	}
	var r *rejection
	if errors.As(err, &r) {
		return r.msg
	}
	if errors.Is(err, ErrInternalConsistency) {
		return "Something went wrong, please try again"
	}
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
