package domain

// ConfidenceLevel is the stored three-level grounding classification of an
// assistant message.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ScopeConfidence is the retrieval-internal confidence signal produced per
// scope. It is wider than the stored scale on purpose: "conversational"
// (the message did not warrant retrieval) stays distinct from "not_found"
// until storage time.
type ScopeConfidence string

const (
	ScopeConfidenceHigh           ScopeConfidence = "high"
	ScopeConfidenceNeedsReview    ScopeConfidence = "needs_review"
	ScopeConfidenceNotFound       ScopeConfidence = "not_found"
	ScopeConfidenceConversational ScopeConfidence = "conversational"
)

// ErrorCode is the stable error vocabulary crossing the pipeline boundary.
type ErrorCode string

const (
	ErrCodeProjectNotFound         ErrorCode = "project-not-found"
	ErrCodeConversationNotFound    ErrorCode = "conversation-not-found"
	ErrCodeRateLimitExceeded       ErrorCode = "rate-limit-exceeded"
	ErrCodeUpstreamModelError      ErrorCode = "upstream-model-error"
	ErrCodeInvalidAttachmentType   ErrorCode = "invalid-attachment-type"
	ErrCodeInvalidGuardrailConfig  ErrorCode = "invalid-guardrail-config"
	ErrCodeInsufficientPermissions ErrorCode = "insufficient-permissions"
	ErrCodeOnboardingIncomplete    ErrorCode = "onboarding-incomplete"
	ErrCodeValidationError         ErrorCode = "validation-error"
	ErrCodeUnauthorized            ErrorCode = "unauthorized"
	ErrCodeInternalError           ErrorCode = "internal-error"
)

// HTTPStatus maps an error code to its status class for request/response
// transports.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeValidationError, ErrCodeInvalidAttachmentType, ErrCodeInvalidGuardrailConfig:
		return 400
	case ErrCodeUnauthorized:
		return 401
	case ErrCodeInsufficientPermissions:
		return 403
	case ErrCodeProjectNotFound, ErrCodeConversationNotFound:
		return 404
	case ErrCodeOnboardingIncomplete:
		return 422
	case ErrCodeRateLimitExceeded:
		return 429
	case ErrCodeUpstreamModelError, ErrCodeInternalError:
		return 500
	}
	return 500
}

// Message roles persisted by this core.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document statuses. Only ready documents are searchable.
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Attachment types accepted on a chat request.
const (
	AttachmentTypePDF   = "pdf"
	AttachmentTypeImage = "image"
)
