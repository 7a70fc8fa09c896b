package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the authentication subsystem.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingToken     = errors.New("missing bearer token")
	ErrPermissionDenied = errors.New("permission denied")
	ErrMalformedEntry   = errors.New("malformed token entry")
)

// Permissions understood by the HTTP transport.
const (
	PermToolsRead = "tools:read"
	PermToolsCall = "tools:call"
)

// Subject is the caller a token belongs to. It is passed to handlers via
// context.
type Subject struct {
	Name        string
	Permissions []string

	permissionsSet map[string]struct{}
}

// normalise prepares the lookup set for permission checks.
func (s *Subject) normalise() {
	if s == nil {
		return
	}
	if s.permissionsSet == nil {
		s.permissionsSet = make(map[string]struct{}, len(s.Permissions))
		for _, perm := range s.Permissions {
			s.permissionsSet[strings.ToLower(strings.TrimSpace(perm))] = struct{}{}
		}
	}
}

// HasPermission reports whether the subject has the specified permission.
func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	s.normalise()
	_, ok := s.permissionsSet[strings.ToLower(strings.TrimSpace(permission))]
	return ok
}

// Authorize ensures the subject has all required permissions.
func (s *Subject) Authorize(perms ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	for _, perm := range perms {
		if perm == "" {
			continue
		}
		if !s.HasPermission(perm) {
			return fmt.Errorf("%w: missing %s", ErrPermissionDenied, perm)
		}
	}
	return nil
}

// Mode enumerates the supported authentication modes.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeToken    Mode = "token"
)
