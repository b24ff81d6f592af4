package domain

import "errors"

var ErrConfiguration = errors.New("registry configuration error")
var ErrInvalidRole = errors.New("invalid role")
var ErrInvalidPortal = errors.New("invalid portal")

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("user already exists")

// ErrMetadataConflict is returned by conditional metadata writes whose guard
// key was already set.
var ErrMetadataConflict = errors.New("metadata already set")

// ErrNoSession is returned by identity providers when the request carries no
// usable session. Callers of the session resolver never see it: absence of a
// session is a nil value there.
var ErrNoSession = errors.New("no active session")

var ErrInvalidOTP = errors.New("invalid or expired login link")
var ErrRoleAlreadySelected = errors.New("role already selected")
var ErrRoleNotSelectable = errors.New("role cannot be self-assigned")

// ErrSignOut wraps a provider refusal to invalidate a session.
var ErrSignOut = errors.New("sign out failed")
