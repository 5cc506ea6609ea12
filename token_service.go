package membership

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionService issues and validates signed session tokens.
type SessionService struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// NewSessionService creates a SessionService. expirationHours defaults to 24.
func NewSessionService(signingKey []byte, expirationHours int, issuer string, audience []string, logger Logger) *SessionService {
	if expirationHours <= 0 {
		expirationHours = 24
	}
	return &SessionService{
		signingKey: signingKey,
		expiration: time.Duration(expirationHours) * time.Hour,
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		logger:     normalizeLogger(logger),
		now:        time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (s *SessionService) WithClock(clock func() time.Time) *SessionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Issue signs a session token for account.
func (s *SessionService) Issue(account *Account) (string, error) {
	claims := ClaimsFromAccount(account)
	if claims == nil {
		return "", goerrors.New("account must not be nil", goerrors.CategoryInternal)
	}

	now := s.now()
	claims.Issuer = s.issuer
	claims.Audience = s.audience
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.expiration))
	claims.ID = uuid.NewString()

	return s.SignClaims(claims)
}

// SignClaims signs arbitrary session claims using the configured signing key.
func (s *SessionService) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Validate parses and validates a token string, returning structured claims
func (s *SessionService) Validate(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrSessionMissing
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if s.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(s.issuer))
	}
	if len(s.audience) > 0 {
		// the first configured audience identifies this service
		parserOptions = append(parserOptions, jwt.WithAudience(s.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			s.logger.Error("session validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, goerrors.Wrap(err, ErrSessionInvalid.Category, ErrSessionInvalid.Message).
			WithTextCode(ErrSessionInvalid.TextCode).
			WithCode(ErrSessionInvalid.Code)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	s.logger.Error("session validate could not decode claims")
	return nil, ErrSessionInvalid
}
