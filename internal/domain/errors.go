package domain

import "errors"

var (
	ErrUnknownPriority = errors.New("unknown priority")
	ErrUserNotFound    = errors.New("user not found")
)
