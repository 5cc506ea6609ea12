package membership

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// SessionLocalsKey is where RequireRole stores validated claims
const SessionLocalsKey = "session"

// StatusForError maps an error onto the HTTP status clients receive.
func StatusForError(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON body sent on failures
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure to the client
type ErrorBody struct {
	Message    string `json:"message"`
	TextCode   string `json:"text_code,omitempty"`
	Category   string `json:"category,omitempty"`
	Validation any    `json:"validation,omitempty"`
}

// NewErrorResponse builds the client facing body for err. Internal errors
// are reduced to a generic message.
func NewErrorResponse(err error) (int, ErrorResponse) {
	status := StatusForError(err)

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return status, ErrorResponse{Error: ErrorBody{Message: "An unexpected server error occurred"}}
	}

	body := ErrorBody{
		Message:  richErr.Message,
		TextCode: richErr.TextCode,
		Category: string(richErr.Category),
	}
	if status == http.StatusInternalServerError {
		body.Message = "An unexpected server error occurred"
		body.TextCode = ""
	}
	if richErr.Category == goerrors.CategoryValidation {
		body.Validation = richErr.ValidationMap()
	}
	return status, ErrorResponse{Error: body}
}

// JSONErrorHandler renders err as JSON, logging server side failures.
func JSONErrorHandler(logger Logger) func(ctx router.Context, err error) error {
	logger = normalizeLogger(logger)
	return func(ctx router.Context, err error) error {
		status, body := NewErrorResponse(err)
		if status >= http.StatusInternalServerError {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				logger.Error("request failed",
					"error", richErr.Error(),
					"category", richErr.Category,
					"details", print.MaybePrettyJSON(richErr.Metadata),
				)
			} else {
				logger.Error("request failed", "error", err)
			}
		}
		return ctx.JSON(status, body)
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// RequireRole validates the bearer session token and checks its role.
// Validated claims are stored under SessionLocalsKey.
func RequireRole(sessions *SessionService, role string, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = JSONErrorHandler(nil)
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			claims, err := sessions.Validate(BearerToken(ctx.Header("Authorization")))
			if err != nil {
				return errorHandler(ctx, err)
			}
			if role != "" && !claims.HasRole(role) {
				return errorHandler(ctx, ErrForbidden.Clone().WithMetadata(map[string]any{
					"required": role,
				}))
			}
			ctx.Locals(SessionLocalsKey, claims)
			ctx.SetContext(WithSessionContext(ctx.Context(), claims))
			return next(ctx)
		}
	}
}

// SessionFromContext returns the claims stored by RequireRole.
func SessionFromContext(ctx router.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Locals(SessionLocalsKey).(*SessionClaims)
	return claims, ok && claims != nil
}

// ActorFromContext returns the session actor or an anonymous actor.
func ActorFromContext(ctx router.Context) ActorRef {
	if claims, ok := SessionFromContext(ctx); ok {
		return ActorRef{ID: claims.UserID(), Type: claims.Role()}
	}
	return ActorRef{Type: "anonymous"}
}
