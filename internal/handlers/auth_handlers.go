package handlers

import (
	"net/http"
	"time"

	"taskPrioritizer/internal/handlers/dto"
	"taskPrioritizer/internal/logger"

	"go.uber.org/zap"
)

type AuthHandler struct {
	AuthService AuthService
}

func NewAuthHandler(authService AuthService) AuthHandler {
	return AuthHandler{AuthService: authService}
}

func (s *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.Credentials
	if !decodeJSON(w, r, &request) {
		return
	}

	created, err := s.AuthService.Register(r.Context(), request.Email, request.Password)
	if err != nil {
		handleServiceError(w, r, err, "register")
		return
	}

	logger.Info("HTTP_OUT: Пользователь зарегистрирован",
		zap.String("user_id", created.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated,
		toPayload("id", created.ID),
		toPayload("email", created.Email))
}

func (s *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.Credentials
	if !decodeJSON(w, r, &request) {
		return
	}

	token, err := s.AuthService.Login(r.Context(), request.Email, request.Password)
	if err != nil {
		handleServiceError(w, r, err, "login")
		return
	}

	logger.Info("HTTP_OUT: Вход выполнен",
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.TokenResponse{Token: token})
}
