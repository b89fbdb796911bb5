package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("duplicate notification (idempotency)")
	ErrMissingUserID      = errors.New("user_id must not be empty")
	ErrMissingPayload     = errors.New("payload must not be empty")
	ErrInvalidMessageType = errors.New("invalid message_type: must be EMAIL, SMS, or PUSH")
	ErrInvalidProvider    = errors.New("invalid provider")
	ErrInvalidMaxRetries  = errors.New("max_retries must be >= 0")
	ErrInvalidStatus      = errors.New("invalid status: must be PENDING, SENT, FAILED, or CANCELLED")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrNotCancellable     = errors.New("only pending notifications can be cancelled")
	ErrAlreadyInDLQ       = errors.New("notification already has a DLQ entry")
	ErrDLQResolved        = errors.New("DLQ entry is already resolved")
	ErrBulkEmpty          = errors.New("bulk request must contain at least one notification")
)
