package membership

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the JWT claims carried by a session token
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

// UserID returns the account id
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Role returns the account role
func (c *SessionClaims) Role() string {
	return c.UserRole
}

// HasRole reports whether the session carries role. Admins satisfy every role.
func (c *SessionClaims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return c.UserRole == role || c.UserRole == RoleAdmin
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// ClaimsFromAccount maps a stored account to session claims. It is pure:
// registered claims like issuer and expiry are added by the session service.
func ClaimsFromAccount(account *Account) *SessionClaims {
	if account == nil {
		return nil
	}
	role := account.Role
	if role == "" {
		role = RoleUser
	}
	return &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: account.ID,
		},
		UID:      account.ID,
		UserRole: role,
		Email:    account.Email,
		Username: account.Username,
		Name:     account.FullName,
	}
}
