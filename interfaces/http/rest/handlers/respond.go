package handlers

import (
	"encoding/json"
	"net/http"

	pkgerrors "bookkeeper-backend/pkg/errors"

	"go.uber.org/zap"
)

func respondJSON(logger *zap.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func respondError(logger *zap.Logger, w http.ResponseWriter, status int, message string) {
	respondJSON(logger, w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}

// respondDomainError maps an application error onto the wire: the status
// comes from the error taxonomy, the message from the error itself.
func respondDomainError(logger *zap.Logger, w http.ResponseWriter, err error) {
	status := pkgerrors.HTTPStatusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		respondError(logger, w, status, "Internal server error")
		return
	}
	respondError(logger, w, status, err.Error())
}
