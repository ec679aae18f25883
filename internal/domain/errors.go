package domain

import "errors"

// Sentinel errors for the application. Stores translate constraint violations
// into these so callers never depend on driver error types.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrInvalidInput = errors.New("invalid input")

	ErrDuplicateIdentity   = errors.New("username or email already registered")
	ErrInvalidCredentials  = errors.New("incorrect username or password")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrTargetNotFound      = errors.New("contact target not found")
	ErrDuplicateEdge       = errors.New("contact already exists")
	ErrEdgeNotFound        = errors.New("contact not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrDuplicateName       = errors.New("group name already taken")
	ErrNotGroupMember      = errors.New("not a member of this group")
)
