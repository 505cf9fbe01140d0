package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by adapters and the application layer.
var (
	ErrAuth           = errors.New("access token exchange failed")
	ErrMissingField   = errors.New("response missing required field")
	ErrMalformed      = errors.New("malformed response")
	ErrTransport      = errors.New("transport failure")
	ErrConfiguration  = errors.New("invalid configuration")
	ErrAssetNotFound  = errors.New("asset not found")
	ErrDownloadFailed = errors.New("asset download failed")
)

// PlatformError is a non-zero errcode envelope returned by the platform.
// Message is the platform's errmsg verbatim.
type PlatformError struct {
	Op      string
	Code    int
	Message string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: errcode %d: %s", e.Op, e.Code, e.Message)
}

// ErrorClass is the coarse category an error is mapped to for decision making.
type ErrorClass string

const (
	ClassNone              ErrorClass = "none"
	ClassAuth              ErrorClass = "auth"
	ClassQuotaOrPermission ErrorClass = "quota_or_permission"
	ClassValidation        ErrorClass = "validation"
	ClassTransport         ErrorClass = "transport"
	ClassConfiguration     ErrorClass = "configuration"
	ClassRejected          ErrorClass = "rejected"
)

// FailureKind names what went wrong in a terminal outcome. The empty kind
// means nothing went wrong.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureAuth              FailureKind = "auth_failure"
	FailureAsset             FailureKind = "asset_failure"
	FailureUploadRejected    FailureKind = "upload_rejected"
	FailureDraftRejected     FailureKind = "draft_rejected"
	FailureSoftUnauthorized  FailureKind = "soft_unauthorized"
	FailureHardRejected      FailureKind = "hard_rejected"
	FailureBroadcastRejected FailureKind = "broadcast_rejected"
	FailurePollExhausted     FailureKind = "poll_exhausted"
	FailureConfiguration     FailureKind = "configuration"
	FailureArticle           FailureKind = "article_unreadable"
)

// PlatformMessage returns the platform's errmsg if err wraps a PlatformError.
func PlatformMessage(err error) string {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return ""
}
