package core

import "errors"

var (
	ErrPermissionDenied     = errors.New("actor is not in the room's voice channel")
	ErrEmptyCategory        = errors.New("no tracks to play")
	ErrNotFound             = errors.New("track not found")
	ErrAlreadyActive        = errors.New("session already active in room")
	ErrTransportUnavailable = errors.New("audio transport unavailable")
	ErrStale                = errors.New("presentation target no longer exists")
	ErrNoSession            = errors.New("no session in room")
	ErrBusy                 = errors.New("session busy")
	ErrWrongMode            = errors.New("action not available in current mode")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInternal             = errors.New("internal error")
)

const genericFailure = "Something went wrong while handling that. Please try again."

// Describe maps an error returned by the session layer to the message shown to
// the initiating actor. It returns "" for errors that are dropped silently.
func Describe(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrBusy):
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "You cannot interact with the player because you're not in the same voice channel."
	case errors.Is(err, ErrEmptyCategory),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrWrongMode),
		errors.Is(err, ErrInvalidAction):
		return err.Error()
	case errors.Is(err, ErrNoSession):
		return "The player is not currently in any voice channel."
	case errors.Is(err, ErrAlreadyActive):
		return "The player is already active in this room."
	case errors.Is(err, ErrTransportUnavailable):
		return "Could not connect to the voice channel."
	}
	return genericFailure
}
