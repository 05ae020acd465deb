package handlers

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"taskPrioritizer/internal/auth"
	"taskPrioritizer/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

func checkContentType(r *http.Request, target string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == target
}

// decodeJSON проверяет тип контента и разбирает тело. При ошибке ответ уже отправлен.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type должен быть application/json")
		return false
	}

	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := decoder.Decode(dst); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("неверное тело запроса: %v", err))
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "не удалось получить id: "+err.Error())
		return uuid.Nil, false
	}

	if id == uuid.Nil {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "nil id"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", "id не может быть пустым")
		return uuid.Nil, false
	}
	return id, true
}

// ownerOf достаёт владельца из сессии, выставленной middleware авторизации
func ownerOf(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		logger.Warn("HTTP: Запрос без сессии",
			zap.String("path", r.URL.Path),
			zap.String("client_ip", r.RemoteAddr))

		WriteUnauthorized(w, "требуется авторизация")
		return uuid.Nil, false
	}
	return session.UserID, true
}
