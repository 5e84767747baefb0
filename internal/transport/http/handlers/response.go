package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vedran77/pulse/pkg/apperrors"
	"github.com/vedran77/pulse/pkg/validator"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string                     `json:"code"`
	Message string                     `json:"message"`
	Fields  validator.ValidationErrors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: &errorBody{Code: code, Message: message}})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(envelope{Error: &errorBody{
		Code:    string(apperrors.CodeInvalidArgument),
		Message: "Validation failed",
		Fields:  errs,
	}})
}

// writeServiceError maps an application error to its status. Anything that
// is not a client error is logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = &apperrors.AppError{Code: apperrors.CodeInternal, Cause: err}
	}

	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "op", op, "error", err)
		writeError(w, status, string(apperrors.CodeInternal), "Something went wrong")
		return
	}
	writeError(w, status, string(appErr.Code), appErr.Message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}
