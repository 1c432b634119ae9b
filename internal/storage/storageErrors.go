package storage

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrPollNotFound = errors.New("poll not found")
	// ErrDuplicateVote is the unique-constraint backstop for concurrent
	// double-submits by the same user; services map it to a domain outcome.
	ErrDuplicateVote = errors.New("vote already exists for this user and poll")
)
