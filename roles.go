package tours

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// UserRole is the role assigned to an account
type UserRole string

const (
	RoleUser      UserRole = "user"
	RoleGuide     UserRole = "guide"
	RoleLeadGuide UserRole = "lead-guide"
	RoleAdmin     UserRole = "admin"
)

// IsValid checks if the role is one of the predefined roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	default:
		return false
	}
}

// In reports whether the role is part of the allowed set
func (r UserRole) In(allowed ...UserRole) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

func (r UserRole) String() string {
	return string(r)
}

// ParseRole returns the role matching s, case insensitive
func ParseRole(s string) (UserRole, error) {
	role := UserRole(strings.ToLower(strings.TrimSpace(s)))
	if !role.IsValid() {
		return "", errors.New("unknown user role", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": s})
	}
	return role, nil
}
