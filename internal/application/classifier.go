package application

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// Platform errcodes with a fixed meaning for classification.
var (
	authCodes = map[int]bool{
		40001: true, // invalid credential or access token
		40014: true, // invalid access token
		40125: true, // invalid appsecret
		40164: true, // caller IP not whitelisted
		42001: true, // access token expired
	}
	quotaOrPermissionCodes = map[int]bool{
		48001: true, // api unauthorized
		45009: true, // daily api quota reached
		45028: true, // mass-send quota reached
	}
)

// unauthorizedMarker is matched case-insensitively against errmsg. Some
// permission failures arrive with codes outside quotaOrPermissionCodes and are
// only recognisable by their message.
const unauthorizedMarker = "unauthorized"

// Classify maps an error from a platform call to the class that decides
// whether the orchestrator degrades or aborts. A nil error is ClassNone.
func Classify(err error) model.ErrorClass {
	if err == nil {
		return model.ClassNone
	}

	var pe *model.PlatformError
	isPlatform := errors.As(err, &pe)

	switch {
	case errors.Is(err, model.ErrAuth):
		return model.ClassAuth
	case isPlatform && authCodes[pe.Code]:
		return model.ClassAuth
	case isPlatform && (quotaOrPermissionCodes[pe.Code] ||
		strings.Contains(strings.ToLower(pe.Message), unauthorizedMarker)):
		return model.ClassQuotaOrPermission
	case errors.Is(err, model.ErrConfiguration):
		return model.ClassConfiguration
	case errors.Is(err, model.ErrMissingField), errors.Is(err, model.ErrMalformed):
		return model.ClassValidation
	case errors.Is(err, model.ErrTransport), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return model.ClassTransport
	case isPlatform:
		return model.ClassRejected
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return model.ClassTransport
	}
	return model.ClassRejected
}
