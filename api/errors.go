package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flpliao/lovable-clock-flow-sub004/generic"
	"github.com/flpliao/lovable-clock-flow-sub004/logging"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "not_found"
	CodeForbidden        = "forbidden"
	CodeInvalidState     = "invalid_state"
	CodeInternal         = "internal"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: codeForStatus(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps an error from the domain packages to a status:
//
//	validation failed                    422 (all errors and warnings)
//	bad range / missing field / unknown  400
//	employee or request not found        404
//	wrong approver / not the requester   403
//	stale level / terminal / duplicate   409
//	anything else                        500
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var vf *generic.ValidationFailedError
	switch {
	case errors.As(err, &vf):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    message,
			Code:     CodeValidationFailed,
			Details:  vf.Error(),
			Errors:   vf.Errors,
			Warnings: vf.Warnings,
		})
	case errors.Is(err, generic.ErrNotCurrentApprover), errors.Is(err, generic.ErrNotRequester):
		writeError(w, http.StatusForbidden, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		l := logging.FromContext(r.Context(), logging.Component("api"))
		l.Error().Err(err).Str("path", r.URL.Path).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnprocessableEntity:
		return CodeValidationFailed
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusConflict:
		return CodeInvalidState
	default:
		return CodeInternal
	}
}
