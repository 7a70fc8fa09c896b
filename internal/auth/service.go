package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"OpenMCP-Stellar/pkg/logger"
)

type credential struct {
	digest  [sha256.Size]byte
	subject Subject
}

// Service authenticates bearer tokens against a static list.
type Service struct {
	mode   Mode
	tokens []credential
	audit  *slog.Logger
}

// NewService parses token entries of the form "token", "name:token" or
// "name:token:read". A read entry may only list tools. With no entries
// authentication is disabled.
func NewService(entries []string) (*Service, error) {
	svc := &Service{mode: ModeDisabled, audit: logger.Audit()}
	for i, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ":")
		name, token := fmt.Sprintf("token-%d", i+1), parts[0]
		perms := []string{PermToolsRead, PermToolsCall}
		switch len(parts) {
		case 1:
		case 2:
			name, token = parts[0], parts[1]
		case 3:
			name, token = parts[0], parts[1]
			if !strings.EqualFold(parts[2], "read") {
				return nil, fmt.Errorf("%w: entry %d has unknown scope %q", ErrMalformedEntry, i+1, parts[2])
			}
			perms = []string{PermToolsRead}
		default:
			return nil, fmt.Errorf("%w: entry %d", ErrMalformedEntry, i+1)
		}
		if name == "" || token == "" {
			return nil, fmt.Errorf("%w: entry %d", ErrMalformedEntry, i+1)
		}
		svc.tokens = append(svc.tokens, credential{
			digest:  sha256.Sum256([]byte(token)),
			subject: Subject{Name: name, Permissions: perms},
		})
	}
	if len(svc.tokens) > 0 {
		svc.mode = ModeToken
	}
	return svc, nil
}

// Mode returns the active mode.
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// AuthenticateRequest resolves the subject of an Authorization header.
func (s *Service) AuthenticateRequest(_ context.Context, authorization string) (*Subject, error) {
	if s == nil || s.mode == ModeDisabled {
		return nil, nil
	}
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return nil, ErrMissingToken
	}
	const prefix = "bearer "
	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return nil, ErrInvalidToken
	}
	digest := sha256.Sum256([]byte(strings.TrimSpace(authorization[len(prefix):])))
	for _, c := range s.tokens {
		if subtle.ConstantTimeCompare(digest[:], c.digest[:]) == 1 {
			subject := c.subject
			subject.Permissions = append([]string(nil), c.subject.Permissions...)
			subject.permissionsSet = nil
			return &subject, nil
		}
	}
	return nil, ErrInvalidToken
}
