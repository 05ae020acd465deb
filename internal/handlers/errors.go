package handlers

import (
	"errors"
	"net/http"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/service"

	"go.uber.org/zap"
)

// handleServiceError отвечает на ошибку сервиса. Бизнес-ошибки отдаются
// с их кодом, остальные превращаются в 500 без подробностей.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	var businessErr *service.BusinessError
	if errors.As(err, &businessErr) {
		statusCode := mapBusinessErrorToHTTP(businessErr.Code)

		logger.Warn("HTTP: Бизнес-ошибка",
			zap.String("operation", operation),
			zap.String("error_code", businessErr.Code),
			zap.Int("http_status", statusCode),
			zap.String("client_ip", r.RemoteAddr))

		responseWithBusinessError(w, statusCode, businessErr)
		return
	}

	logger.Error("HTTP: Ошибка Service", err,
		zap.String("operation", operation),
		zap.String("client_ip", r.RemoteAddr))

	responseWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "внутренняя ошибка сервера")
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeVersionConflict, service.CodeEmailTaken:
		return http.StatusConflict
	case service.CodeInvalidCredentials, service.CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}
