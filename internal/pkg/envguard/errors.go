package envguard

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEnvironmentVariable = errors.New("missing environment variable")
	ErrMissingClientVariable      = errors.New("missing client environment variable")
	ErrMissingServerVariable      = errors.New("missing server environment variable")
	ErrInvalidClientVariable      = errors.New("variable is not allow-listed for client code")
	ErrInvalidServerVariable      = errors.New("server code must not read client-scoped variable")
	ErrSecurityViolation          = errors.New("security violation: server-only secret exposed to client")
	ErrMalformedEnvironment       = errors.New("malformed environment variable")
	ErrInvalidPolicy              = errors.New("invalid environment policy")
)

// VarError ties a guard failure to the variable it concerns. Kind is one of
// the sentinel errors above and is what errors.Is matches against.
type VarError struct {
	Kind   error
	Name   string
	Detail string
}

func (e *VarError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v: %s (%s)", e.Kind, e.Name, e.Detail)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Name)
}

func (e *VarError) Unwrap() error { return e.Kind }

func varErr(kind error, name string) error {
	return &VarError{Kind: kind, Name: name}
}
