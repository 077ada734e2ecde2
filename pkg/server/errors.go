package server

import (
	"context"
	"net/http"

	"github.com/jingkaihe/skill-engine/pkg/featureset"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/scripts"
	"github.com/jingkaihe/skill-engine/pkg/skills"
	"github.com/jingkaihe/skill-engine/pkg/sysprompt"
	"github.com/jingkaihe/skill-engine/pkg/tools"
	"github.com/pkg/errors"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps the engine's error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var execErr *scripts.ExecutionError
	switch {
	case errors.Is(err, skills.ErrNotFound), errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, skills.ErrPathEscape),
		errors.Is(err, tools.ErrInvalidInput),
		errors.Is(err, featureset.ErrInvalidFeatureSet),
		errors.Is(err, sysprompt.ErrInvalidRequestContext):
		return http.StatusBadRequest
	case errors.Is(err, scripts.ErrNotAllowed), errors.Is(err, scripts.ErrUnknownScript):
		return http.StatusForbidden
	case errors.As(err, &execErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorLabel(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid request"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusBadGateway:
		return "Script execution failed"
	default:
		return http.StatusText(status)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	writeErrorResponse(ctx, w, status, errorLabel(status), err)
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, status int, label string, err error) {
	log := logger.G(ctx).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		log.Error(label)
	} else {
		log.Debug(label)
	}

	writeJSONResponse(ctx, w, status, ErrorResponse{Error: label, Message: err.Error()})
}
