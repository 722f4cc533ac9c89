package domain

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error kind.
type Code string

const (
	CodeRoomFull       Code = "ROOM_FULL"
	CodeMaxRooms       Code = "MAX_ROOMS_REACHED"
	CodeAlreadyStarted Code = "ALREADY_STARTED"
	CodeAlreadyInRoom  Code = "ALREADY_IN_ROOM"
	CodeNotInRoom      Code = "NOT_IN_ROOM"
	CodeRoomNotFound   Code = "ROOM_NOT_FOUND"
	CodeAlreadyExists  Code = "ALREADY_EXISTS"
	CodeNotReady       Code = "NOT_READY"
	CodeInvalidConfig  Code = "INVALID_CONFIG"
	CodeUnknownClass   Code = "UNKNOWN_CLASS"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeBadPayload     Code = "BAD_PAYLOAD"
	CodeInvalidName    Code = "INVALID_NAME"
	CodeUnknownEvent   Code = "UNKNOWN_EVENT"
	CodeInternal       Code = "INTERNAL"
)

// Error is the typed failure returned by room, registry and matching operations.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Err     error          `json:"-"`
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause; the cause is never sent to clients.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithContext returns a copy carrying one more context entry.
func (e *Error) WithContext(key string, value any) *Error {
	out := *e
	out.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		out.Context[k] = v
	}
	out.Context[key] = value
	return &out
}

// CodeOf extracts the code of err, INTERNAL for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError converts any error into a client-safe *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(CodeInternal, "internal error", err)
}

var (
	ErrRoomFull       = New(CodeRoomFull, "room is full")
	ErrMaxRooms       = New(CodeMaxRooms, "maximum number of rooms reached")
	ErrAlreadyStarted = New(CodeAlreadyStarted, "room already started")
	ErrAlreadyInRoom  = New(CodeAlreadyInRoom, "player already in a room")
	ErrNotInRoom      = New(CodeNotInRoom, "player is not in a room")
	ErrRoomNotFound   = New(CodeRoomNotFound, "room not found")
	ErrAlreadyExists  = New(CodeAlreadyExists, "room id already registered")
	ErrNotReady       = New(CodeNotReady, "not enough players")
	ErrUnknownClass   = New(CodeUnknownClass, "unknown room class")
	ErrRateLimited    = New(CodeRateLimited, "rate limit exceeded")
	ErrBadPayload     = New(CodeBadPayload, "malformed payload")
	ErrUnknownEvent   = New(CodeUnknownEvent, "unknown event")
)

// NotReady reports a start attempt below the minimum roster size.
func NotReady(current, minPlayers int) *Error {
	return ErrNotReady.WithContext("current", current).WithContext("min_players", minPlayers)
}
