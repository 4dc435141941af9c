package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"querydesk/internal/domain"
)

// errorBody is the failure envelope: {"error": {stage, reason, message}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Stage   string `json:"stage,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// writeError maps typed domain errors to HTTP statuses. Translation and
// validation rejections are 422, runtime execution failures 400, timeouts
// 504, everything unrecognized 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		notFound    *domain.NotFoundError
		conflict    *domain.ConflictError
		upload      *domain.UploadError
		translation *domain.TranslationError
		validation  *domain.ValidationError
		execution   *domain.ExecutionError
		export      *domain.ExportError
		insight     *domain.InsightsError
	)

	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{errorDetail{Reason: "not_found", Message: notFound.Message}})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody{errorDetail{Reason: "conflict", Message: conflict.Message}})
	case errors.As(err, &upload):
		writeJSON(w, http.StatusBadRequest, errorBody{errorDetail{Stage: "upload", Reason: "invalid_upload", Message: upload.Message}})
	case errors.As(err, &translation):
		status := http.StatusUnprocessableEntity
		if translation.Reason == domain.ReasonModelTimeout {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, errorBody{errorDetail{Stage: domain.StageTranslation, Reason: translation.Reason, Message: translation.Message}})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{errorDetail{Stage: domain.StageValidation, Reason: validation.Reason, Message: validation.Message}})
	case errors.As(err, &execution):
		status := http.StatusBadRequest
		if execution.Reason == domain.ReasonTimeout {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, errorBody{errorDetail{Stage: domain.StageExecution, Reason: execution.Reason, Message: execution.Message}})
	case errors.As(err, &export):
		writeJSON(w, http.StatusBadRequest, errorBody{errorDetail{Reason: "export_error", Message: export.Message}})
	case errors.As(err, &insight):
		status := http.StatusBadGateway
		if insight.Reason == domain.ReasonModelTimeout {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, errorBody{errorDetail{Stage: domain.StageInsights, Reason: insight.Reason, Message: insight.Message}})
	default:
		logger.Error("unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{errorDetail{Reason: "internal", Message: "internal server error"}})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{errorDetail{Reason: "bad_request", Message: message}})
}
