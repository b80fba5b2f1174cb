package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrEmailExists        = errors.New("auth: email already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrUnauthorized       = errors.New("auth: unauthorized")
	ErrForbidden          = errors.New("auth: forbidden")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrSelfRoleChange     = errors.New("auth: cannot change own role")
)

// PermissionError reports a missing capability. It matches ErrForbidden.
type PermissionError struct {
	Actor      string
	Permission Permission
}

func (e *PermissionError) Error() string {
	actor := e.Actor
	if actor == "" {
		actor = "anonymous"
	}
	return fmt.Sprintf("auth: %s lacks permission %s", actor, e.Permission)
}

func (e *PermissionError) Unwrap() error { return ErrForbidden }
