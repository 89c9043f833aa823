package models

import "errors"

// Soft failures. ErrNotFound means a queue item vanished before the action
// completed, which happens whenever two users act on the same item.
var (
	ErrNotFound      = errors.New("item already handled")
	ErrUserNotFound  = errors.New("user not found")
	ErrUserBlocked   = errors.New("user is blocked")
	ErrNotRegistered = errors.New("user has no nickname yet")
)

// Validation failures, surfaced to the end user as-is.
var (
	ErrNicknameTaken   = errors.New("nickname already taken")
	ErrInvalidNickname = errors.New("nickname must be 1-50 letters or digits")
	ErrInvalidPayload  = errors.New("malformed message payload")
	ErrOwnItem         = errors.New("cannot act on your own message")
	ErrNotOwner        = errors.New("only the author can do this")
	ErrInvalidUser     = errors.New("user id is required")
)
