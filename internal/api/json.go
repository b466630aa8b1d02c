package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/vault"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string             `json:"error" validate:"required"`
	Kind   apperr.Kind        `json:"kind,omitempty"`
	Errors []vault.FieldError `json:"errors,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidPath, apperr.KindInvalidQuery:
		return http.StatusBadRequest
	case apperr.KindNotFound, apperr.KindParentNotFound:
		return http.StatusNotFound
	case apperr.KindAlreadyExists, apperr.KindDirectoryNotEmpty, apperr.KindConflict, apperr.KindInvalidMove:
		return http.StatusConflict
	case apperr.KindPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a classified error. Unclassified failures are logged
// and reported without detail.
func writeError(w http.ResponseWriter, op string, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errResponse{Error: "internal error", Kind: apperr.KindIO})
		return
	}
	writeJSON(w, status, errResponse{Error: err.Error(), Kind: kind})
}

// writeEntityErrors writes the failures recorded on an entity. Field errors
// are reported as 422, base errors by their kind.
func writeEntityErrors(w http.ResponseWriter, op string, errs *vault.Errors) {
	all := errs.All()
	status := statusFor(errs.Kind())
	for _, fe := range all {
		if !fe.IsBase() {
			status = http.StatusUnprocessableEntity
			break
		}
	}
	msg := errs.Err().Error()
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", msg))
		msg = "internal error"
	}
	writeJSON(w, status, errResponse{Error: msg, Kind: errs.Kind(), Errors: all})
}
