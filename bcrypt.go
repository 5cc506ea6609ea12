package membership

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest password accepted on set or reset
	MinPasswordLength = 6
	// MaxPasswordLength keeps input inside the bcrypt 72 byte window
	MaxPasswordLength = 72
)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// BcryptHasher is the default PasswordHasher
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a hasher, falling back to the default cost
// when cost is out of range.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return BcryptHasher{Cost: cost}
}

// HashPassword will generate a password hash
func (h BcryptHasher) HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	cost := h.Cost
	if cost == 0 {
		cost = passwordHashCost()
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(out), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// ValidatePassword enforces the length bounds on a new password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort.Clone().WithMetadata(map[string]any{
			"min_length": MinPasswordLength,
		})
	}
	if len(password) > MaxPasswordLength {
		return goerrors.New("password is too long", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidationFailed).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"max_length": MaxPasswordLength})
	}
	return nil
}
