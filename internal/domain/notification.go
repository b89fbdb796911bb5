package domain

import "time"

// MessageType is the delivery channel for a notification.
// Canonical uppercase is the only accepted wire form.
type MessageType string

const (
	MessageTypeEmail MessageType = "EMAIL"
	MessageTypeSMS   MessageType = "SMS"
	MessageTypePush  MessageType = "PUSH"
)

func (m MessageType) IsValid() bool {
	switch m {
	case MessageTypeEmail, MessageTypeSMS, MessageTypePush:
		return true
	}
	return false
}

// ProviderType identifies the concrete transport used to deliver
// a notification. The registry maps each value to an adapter instance.
type ProviderType string

const (
	ProviderGmail      ProviderType = "GMAIL"
	ProviderOutlook    ProviderType = "OUTLOOK"
	ProviderCustomSMTP ProviderType = "CUSTOM_SMTP"
	ProviderTextbelt   ProviderType = "TEXTBELT"
	ProviderConsoleSMS ProviderType = "CONSOLE_SMS"
	ProviderFCM        ProviderType = "FCM"
	ProviderLocal      ProviderType = "LOCAL"
)

func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderGmail, ProviderOutlook, ProviderCustomSMTP,
		ProviderTextbelt, ProviderConsoleSMS, ProviderFCM, ProviderLocal:
		return true
	}
	return false
}

// Status tracks the lifecycle of a notification.
// SENT, FAILED and CANCELLED are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are legal.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Notification is the core domain entity. All timestamps are
// millisecond epochs; optional ones are nil until set.
type Notification struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	IdempotencyKey   string       `json:"idempotency_key"`
	MessageType      MessageType  `json:"message_type"`
	Provider         ProviderType `json:"provider"`
	Status           Status       `json:"status"`
	Payload          string       `json:"payload"`
	AttemptCount     int          `json:"attempt_count"`
	MaxRetries       int          `json:"max_retries"`
	CreatedAt        int64        `json:"created_at"`
	UpdatedAt        int64        `json:"updated_at"`
	LastAttemptedAt  *int64       `json:"last_attempted_at,omitempty"`
	SendAt           *int64       `json:"send_at,omitempty"`
	SentAt           *int64       `json:"sent_at,omitempty"`
	FailedAt         *int64       `json:"failed_at,omitempty"`
	ErrorMessage     *string      `json:"error_message,omitempty"`
	ProviderResponse *string      `json:"provider_response,omitempty"`
}

// DLQEntry parks a terminally failed notification for operator
// resolution. One entry per notification, enforced by the store.
type DLQEntry struct {
	ID             string  `json:"id"`
	NotificationID string  `json:"notification_id"`
	FailureReason  string  `json:"failure_reason"`
	RetryHistory   string  `json:"retry_history"`
	MovedToDLQAt   int64   `json:"moved_to_dlq_at"`
	Resolved       bool    `json:"resolved"`
	ResolvedAt     *int64  `json:"resolved_at,omitempty"`
	ResolvedBy     *string `json:"resolved_by,omitempty"`
}

// RetryHistory is the structured record serialized into
// DLQEntry.RetryHistory at move time.
type RetryHistory struct {
	TotalAttempts int    `json:"total_attempts"`
	LastError     string `json:"last_error"`
	LastAttempted *int64 `json:"last_attempted,omitempty"`
	FailureReason string `json:"failure_reason"`
}

// DLQStats is the aggregate returned by the DLQ stats operation.
type DLQStats struct {
	Total      int `json:"total"`
	Unresolved int `json:"unresolved"`
	Resolved   int `json:"resolved"`
}

// DLQ failure reason codes.
const (
	ReasonMaxRetriesExceeded   = "max_retries_exceeded"
	ReasonNonRetryableProvider = "non_retryable_provider_error"
	ReasonProviderUnconfigured = "provider_unconfigured"
)

// DefaultMaxRetries applies when the caller omits max_retries.
const DefaultMaxRetries = 5

// CreateNotificationRequest is the inbound payload for a single
// notification intent.
type CreateNotificationRequest struct {
	UserID         string       `json:"user_id"`
	MessageType    MessageType  `json:"message_type"`
	Provider       ProviderType `json:"provider"`
	Payload        string       `json:"payload"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	SendAt         *int64       `json:"send_at,omitempty"`
	MaxRetries     *int         `json:"max_retries,omitempty"`
}

func (r *CreateNotificationRequest) Validate() error {
	if r.UserID == "" {
		return ErrMissingUserID
	}
	if r.Payload == "" {
		return ErrMissingPayload
	}
	if !r.MessageType.IsValid() {
		return ErrInvalidMessageType
	}
	if !r.Provider.IsValid() {
		return ErrInvalidProvider
	}
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	return nil
}

// BulkCreateRequest wraps a slice of notification requests.
// Items succeed or fail independently; the fold is not atomic.
type BulkCreateRequest struct {
	Notifications []CreateNotificationRequest `json:"notifications"`
}

// ListFilter holds query parameters for paginated notification listing.
type ListFilter struct {
	UserID string
	Status *Status
	Limit  int
	Offset int
}

// Normalize clamps pagination to the supported window: limits outside
// [1,100] fall back to 20, negative offsets to 0.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// NowMillis is the single clock used for persisted timestamps.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
