package membership

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// TokenKind identifies a one time credential flow
type TokenKind string

const (
	TokenSetup TokenKind = "setup"
	TokenReset TokenKind = "reset"
)

const (
	// TokenBytes is the entropy drawn for each token
	TokenBytes = 32
	// SetupTokenTTL bounds the password setup link sent on approval
	SetupTokenTTL = 24 * time.Hour
	// ResetTokenTTL bounds the password reset link
	ResetTokenTTL = time.Hour
)

// TTL returns how long a token of kind stays redeemable
func (k TokenKind) TTL() time.Duration {
	if k == TokenReset {
		return ResetTokenTTL
	}
	return SetupTokenTTL
}

// IsValid reports whether k is setup or reset
func (k TokenKind) IsValid() bool {
	return k == TokenSetup || k == TokenReset
}

// IssuedToken is a freshly generated token. Value is handed to the user,
// Digest is what gets persisted.
type IssuedToken struct {
	Kind      TokenKind
	Value     string
	Digest    string
	ExpiresAt time.Time
}

// IssueToken generates a hex encoded random token of kind expiring after
// the kind TTL counted from now.
func IssueToken(kind TokenKind, now time.Time) (IssuedToken, error) {
	if !kind.IsValid() {
		return IssuedToken{}, goerrors.New("unknown token kind", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"kind": kind})
	}

	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return IssuedToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes for token")
	}

	value := hex.EncodeToString(buf)
	return IssuedToken{
		Kind:      kind,
		Value:     value,
		Digest:    DigestToken(value),
		ExpiresAt: now.Add(kind.TTL()).UTC(),
	}, nil
}

// DigestToken returns the storage form of a raw token.
func DigestToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

// IsTokenUsable reports whether a stored token matches digest and has not
// expired at now.
func IsTokenUsable(storedDigest string, expiry *time.Time, digest string, now time.Time) bool {
	if storedDigest == "" || digest == "" || expiry == nil {
		return false
	}
	return storedDigest == digest && expiry.After(now)
}
