package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField     = errors.New("missing field")
	ErrMalformedField   = errors.New("malformed field")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStalePayload     = errors.New("stale payload")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenReused      = errors.New("token reused")
	ErrPersistence      = errors.New("persistence error")
	ErrUserNotFound     = errors.New("user not found")

	// ErrAuthenticationFailed is the only kind callers of the auth service see.
	ErrAuthenticationFailed = errors.New("authentication failed")

	ErrMissingBotToken = errors.New("bot token is not configured")
)

var kinds = []error{
	ErrMissingField,
	ErrMalformedField,
	ErrInvalidSignature,
	ErrStalePayload,
	ErrTokenReused,
	ErrInvalidToken,
	ErrPersistence,
	ErrUserNotFound,
	ErrAuthenticationFailed,
	ErrMissingBotToken,
}

type AppError struct {
	Err     error  // kind sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func MissingField(field string) *AppError {
	return &AppError{
		Err:     ErrMissingField,
		Message: fmt.Sprintf("field %q is required", field),
		Field:   field,
	}
}

func MalformedField(field string, cause error) *AppError {
	return &AppError{
		Err:     ErrMalformedField,
		Message: fmt.Sprintf("field %q is malformed", field),
		Field:   field,
		Cause:   cause,
	}
}

func InvalidSignature() *AppError {
	return &AppError{
		Err:     ErrInvalidSignature,
		Message: "init data signature mismatch",
		Field:   "hash",
	}
}

func StalePayload(age string) *AppError {
	return &AppError{
		Err:     ErrStalePayload,
		Message: fmt.Sprintf("init data is too old (age %s)", age),
		Field:   "auth_date",
	}
}

func InvalidToken(reason string, cause error) *AppError {
	return &AppError{
		Err:     ErrInvalidToken,
		Message: "invalid token: " + reason,
		Cause:   cause,
	}
}

// TokenReused also matches ErrInvalidToken so callers that only check for
// invalid tokens treat a replay the same way.
func TokenReused(jti string) *AppError {
	return &AppError{
		Err:     ErrTokenReused,
		Message: fmt.Sprintf("refresh token %s was already used", jti),
		Cause:   ErrInvalidToken,
	}
}

func Persistence(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: op,
		Cause:   cause,
	}
}

func UserNotFound(telegramID int64) *AppError {
	return &AppError{
		Err:     ErrUserNotFound,
		Message: fmt.Sprintf("user with telegram_id %d not found", telegramID),
	}
}

// AuthenticationFailed hides cause behind an opaque message. The cause is
// still reachable with errors.Is / errors.As for server-side logging.
func AuthenticationFailed(cause error) *AppError {
	return &AppError{
		Err:     ErrAuthenticationFailed,
		Message: "authentication failed",
		Cause:   cause,
	}
}

// Kind returns the most specific kind sentinel err carries, or nil.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Public returns the message that is safe to show to a client.
func Public(err error) string {
	if errors.Is(err, ErrAuthenticationFailed) {
		return ErrAuthenticationFailed.Error()
	}
	return "internal error"
}
