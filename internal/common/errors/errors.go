// Package errors provides standardized error handling for the alerting core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSourceFetchFailed ErrorCode = "SOURCE_FETCH_FAILED"
	ErrCodeSourceDecodeError ErrorCode = "SOURCE_DECODE_ERROR"

	ErrCodeChannelSendFailed  ErrorCode = "CHANNEL_SEND_FAILED"
	ErrCodeChannelDisabled    ErrorCode = "CHANNEL_DISABLED"
	ErrCodeChannelUnknown     ErrorCode = "CHANNEL_UNKNOWN"
	ErrCodeDocumentSendFailed ErrorCode = "DOCUMENT_SEND_FAILED"

	ErrCodeTrackerPersistenceFailed ErrorCode = "TRACKER_PERSISTENCE_FAILED"
	ErrCodeTrackerQueryFailed       ErrorCode = "TRACKER_QUERY_FAILED"

	ErrCodeSubscriptionQueryFailed  ErrorCode = "SUBSCRIPTION_QUERY_FAILED"
	ErrCodeSubscriptionUpdateFailed ErrorCode = "SUBSCRIPTION_UPDATE_FAILED"

	ErrCodeContextCacheFailed ErrorCode = "CONTEXT_CACHE_FAILED"
	ErrCodeContextNotFound    ErrorCode = "CONTEXT_NOT_FOUND"

	ErrCodeQueueAppendFailed ErrorCode = "QUEUE_APPEND_FAILED"

	ErrCodeWebhookVerificationFailed ErrorCode = "WEBHOOK_VERIFICATION_FAILED"
	ErrCodeInlineProcessingFailed    ErrorCode = "INLINE_PROCESSING_FAILED"
	ErrCodeCallbackMalformed         ErrorCode = "CALLBACK_MALFORMED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var t *StandardError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// CodeOf extracts the error code, or empty string for foreign errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsRetryable reports whether the error is marked retryable. Foreign errors
// default to non-retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSourceFetchFailedError creates a retryable upstream source error.
func NewSourceFetchFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceFetchFailed,
		Message:   "Failed to fetch announcements from source",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSourceDecodeError creates a non-retryable source payload error.
func NewSourceDecodeError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceDecodeError,
		Message:   "Failed to decode source payload",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewChannelSendFailedError creates a retryable channel delivery error. The
// next cycle retries naturally because no ledger record was written.
func NewChannelSendFailedError(channel, detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelSendFailed,
		Message:   "Channel send failed",
		Details:   detail,
		Retryable: true,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentSendFailedError creates a retryable document delivery error.
func NewDocumentSendFailedError(channel, detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentSendFailed,
		Message:   "Document delivery failed",
		Details:   detail,
		Retryable: true,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelUnknownError creates a non-retryable unknown channel error.
func NewChannelUnknownError(channel string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelUnknown,
		Message:   "No implementation registered for channel",
		Details:   fmt.Sprintf("channel: %s", channel),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTrackerPersistenceError creates a retryable ledger storage error. This
// must never be interpreted as a duplicate: swallowing it would lose a
// notification.
func NewTrackerPersistenceError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTrackerPersistenceFailed,
		Message:   "Notification ledger write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTrackerQueryError creates a retryable ledger read error.
func NewTrackerQueryError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTrackerQueryFailed,
		Message:   "Notification ledger query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSubscriptionQueryError creates a retryable subscription read error.
func NewSubscriptionQueryError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionQueryFailed,
		Message:   "Subscription query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSubscriptionUpdateError creates a retryable subscription update error.
func NewSubscriptionUpdateError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionUpdateFailed,
		Message:   "Subscription update failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewContextCacheError creates a retryable context cache error.
func NewContextCacheError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContextCacheFailed,
		Message:   "Interactive context cache operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewContextNotFoundError creates a non-retryable missing context error.
// The cached entry expired before the user acted on the button.
func NewContextNotFoundError(token string) *StandardError {
	return &StandardError{
		Code:      ErrCodeContextNotFound,
		Message:   "No cached context for token",
		Details:   fmt.Sprintf("token: %s", token),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueAppendError creates a retryable inbound queue error.
func NewQueueAppendError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueAppendFailed,
		Message:   "Inbound queue append failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInlineProcessingError creates a non-retryable inline processing error.
// It is logged at the webhook boundary and never reaches the HTTP response;
// the queued copy remains the guaranteed delivery path.
func NewInlineProcessingError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInlineProcessingFailed,
		Message:   "Inline callback processing failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCallbackMalformedError creates a non-retryable callback parse error.
func NewCallbackMalformedError(detail string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCallbackMalformed,
		Message:   "Callback payload is malformed",
		Details:   detail,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
