package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidConfig  ErrCode = "INVALID_EXAM_CONFIG"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrNoActiveSession ErrCode = "NO_ACTIVE_SESSION"
	ErrNoSnapshot      ErrCode = "NO_SAVED_SESSION"

	// ─── Shared results ────────────────────────────────────────────────
	ErrShareNotFound    ErrCode = "SHARE_NOT_FOUND"
	ErrInvalidPasscode  ErrCode = "INVALID_PASSCODE"
	ErrPasscodeRequired ErrCode = "PASSCODE_REQUIRED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "A session token is required."
	case ErrTokenInvalid:
		return "The session token is invalid or expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrInvalidConfig:
		return "The exam configuration is invalid."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrNoActiveSession:
		return "No exam session is active for this token."
	case ErrNoSnapshot:
		return "No saved session was found to resume."

	// ─── Shared results ────────────────────────────────────────────────
	case ErrShareNotFound:
		return "The shared result does not exist."
	case ErrInvalidPasscode:
		return "The passcode does not match."
	case ErrPasscodeRequired:
		return "This shared result is protected by a passcode."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
