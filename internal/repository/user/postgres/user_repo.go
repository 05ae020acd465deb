package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/user"
	repo "taskPrioritizer/internal/repository"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Storage struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

func (s *Storage) Create(ctx context.Context, u *user.User) error {
	start := time.Now()

	query := `INSERT INTO users (id, email, password_hash, created_at)
				VALUES ($1, $2, $3, NOW())
				RETURNING created_at`

	err := s.pool.QueryRow(ctx, query, u.ID, strings.ToLower(u.Email), u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return repo.ErrDuplicate
		}
		logger.Error("Repository: Не удалось добавить пользователя", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление пользователя: %w", err)
	}

	if time.Since(start) > time.Millisecond*50 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func (s *Storage) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	start := time.Now()

	query := `SELECT id, email, password_hash, created_at
				FROM users
				WHERE email = $1`

	u := &user.User{}
	err := s.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить пользователя", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
	return u, nil
}
