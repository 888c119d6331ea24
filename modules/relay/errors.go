package relay

import "errors"

// Errors returned by the engine. Connection-local errors are reported back to
// the offending connection as an error frame and never touch shared state.
var (
	ErrInvalidIdentity        = errors.New("invalid user id")
	ErrUnknownSender          = errors.New("sender is not a known user")
	ErrUnknownConnection      = errors.New("connection is not registered")
	ErrMessageNotFound        = errors.New("message not found")
	ErrInvalidPayload         = errors.New("invalid payload")
	ErrUserExists             = errors.New("user already exists")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	ErrLedgerUnavailable      = errors.New("tip ledger unavailable")
	ErrDeliveryFailure        = errors.New("delivery failed")
	ErrEngineClosed           = errors.New("engine is closed")
	ErrRateLimited            = errors.New("too many frames, slow down")
)

// errorCode maps an engine error to the code carried in error frames.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, ErrUnknownSender):
		return "unknown_sender"
	case errors.Is(err, ErrUnknownConnection):
		return "unknown_connection"
	case errors.Is(err, ErrMessageNotFound):
		return "message_not_found"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrUserExists):
		return "user_exists"
	case errors.Is(err, ErrLedgerUnavailable):
		return "tip_failed"
	case errors.Is(err, ErrPersistenceUnavailable):
		return "persistence_unavailable"
	case errors.Is(err, ErrEngineClosed):
		return "shutting_down"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "internal_error"
	}
}
