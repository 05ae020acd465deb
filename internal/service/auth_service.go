package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/user"
	rep "taskPrioritizer/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users  UserRepository
	tokens TokenIssuer
	cost   int
}

func NewAuthService(users UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("хеширование пароля: %w", err)
	}

	u := &user.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, rep.ErrDuplicate) {
			return nil, NewBusinessError(CodeEmailTaken, "пользователь с таким email уже существует",
				ToDetail("field", "email"))
		}
		return nil, fmt.Errorf("регистрация пользователя: %w", err)
	}

	logger.Info("Service: Пользователь зарегистрирован", zap.String("user_id", u.ID.String()))
	return u, nil
}

// Login проверяет пароль и выпускает токен
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	invalid := NewBusinessError(CodeInvalidCredentials, "неверный email или пароль")

	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return "", invalid
		}
		return "", fmt.Errorf("поиск пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		logger.Info("Service: Неудачная попытка входа", zap.String("user_id", u.ID.String()))
		return "", invalid
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return "", fmt.Errorf("выпуск токена: %w", err)
	}
	return token, nil
}
