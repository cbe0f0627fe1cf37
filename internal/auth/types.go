package auth

import (
	"errors"
	"regexp"
)

// usernamePattern defines the valid format for operator names:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed operator name length.
const maxUsernameLength = 64

// IsValidUsername checks if an operator name meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can read turret status and session history and watch
	// the event stream.
	RoleViewer Role = "viewer"

	// RoleOperator can additionally fire and reload.
	RoleOperator Role = "operator"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Operator identifies the caller behind a token or chat message.
type Operator struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid    = errors.New("invalid token")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidUsername = errors.New("invalid operator name")
	ErrForbidden       = errors.New("insufficient permissions")
)
