package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"
	repo "taskPrioritizer/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const taskColumns = `id,
				owner_id,
				title,
				description,
				start_date,
				end_date,
				priority,
				status,
				status_auto,
				created_at,
				updated_at,
				version`

const slowQuery = time.Millisecond * 100

type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

type Storage struct {
	pool *pgxpool.Pool
}

// NewPool создаёт пул соединений и проверяет его ping-ом
func NewPool(ctx context.Context, connString string, opts PoolOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return pool, nil
}

func New(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	logger.Debug("Repository: Соединение стабильно")
	return nil
}

func warnIfSlow(op string, start time.Time, limit time.Duration) {
	if elapsed := time.Since(start); elapsed > limit {
		logger.Warn("Repository: Медленный запрос", zap.String("op", op), zap.Duration("ms", elapsed))
	}
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Title,
		&t.Description,
		&t.StartDate,
		&t.EndDate,
		&t.Priority,
		&t.Status,
		&t.StatusAuto,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	return t, err
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()
	defer warnIfSlow("create", start, slowQuery/2)

	query := `INSERT INTO tasks
				(id, owner_id, title, description, start_date, end_date, priority, status, status_auto, created_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), 1)
				RETURNING created_at, version`

	err := s.pool.QueryRow(ctx, query,
		taskToCreate.ID,
		taskToCreate.OwnerID,
		taskToCreate.Title,
		taskToCreate.Description,
		taskToCreate.StartDate,
		taskToCreate.EndDate,
		taskToCreate.Priority,
		taskToCreate.Status,
		taskToCreate.StatusAuto,
	).Scan(&taskToCreate.CreatedAt, &taskToCreate.Version)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return repo.ErrDuplicate
		}
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}
	return nil
}

func (s *Storage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	start := time.Now()
	defer warnIfSlow("update", start, slowQuery)

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				start_date = $3,
				end_date = $4,
				priority = $5,
				status = $6,
				status_auto = $7,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $8 AND owner_id = $9 AND version = $10
			RETURNING created_at, updated_at, version`

	err := s.pool.QueryRow(ctx, query,
		taskToUpdate.Title,
		taskToUpdate.Description,
		taskToUpdate.StartDate,
		taskToUpdate.EndDate,
		taskToUpdate.Priority,
		taskToUpdate.Status,
		taskToUpdate.StatusAuto,
		taskToUpdate.ID,
		taskToUpdate.OwnerID,
		taskToUpdate.Version,
	).Scan(&taskToUpdate.CreatedAt, &taskToUpdate.UpdatedAt, &taskToUpdate.Version)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// строки нет совсем или версия устарела
			if _, getErr := s.GetByID(ctx, taskToUpdate.OwnerID, taskToUpdate.ID); errors.Is(getErr, repo.ErrNotFound) {
				return repo.ErrNotFound
			}
			logger.Warn("Repository: Конфликт версий при обновлении задачи",
				zap.String("task_id", taskToUpdate.ID.String()),
				zap.Int("expected_version", taskToUpdate.Version))
			return repo.ErrVersionConflict
		}
		logger.Error("Repository: Не удалось обновить задачу", err)
		return fmt.Errorf("обновление задачи: %w", err)
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, owner, id uuid.UUID) (*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("get", start, slowQuery)

	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE id = $1 AND owner_id = $2`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return t, nil
}

func (s *Storage) Delete(ctx context.Context, owner, id uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow("delete", start, slowQuery)

	query := `DELETE FROM tasks
				WHERE id = $1 AND owner_id = $2`

	tag, err := s.pool.Exec(ctx, query, id, owner)
	if err != nil {
		logger.Error("Repository: Удаление задачи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// задачи владельца, новые сверху
func (s *Storage) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("list", start, slowQuery)

	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE owner_id = $1
				ORDER BY created_at DESC, id`

	rows, err := s.pool.Query(ctx, query, owner)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return collect(rows)
}

// ожидающие задачи с автоматическим статусом, у которых дата начала уже наступила
func (s *Storage) ListPendingStartedBefore(ctx context.Context, deadline time.Time, limit int) ([]*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("pending_started", start, slowQuery/2+time.Millisecond*time.Duration(limit))

	if limit <= 0 {
		return []*task.Task{}, nil
	}

	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE status = $1
				AND status_auto
				AND start_date IS NOT NULL
				AND start_date < $2
				ORDER BY start_date
				LIMIT $3`

	rows, err := s.pool.Query(ctx, query, task.StatusPending, deadline, limit)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*task.Task, error) {
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error("Repository: Ошибка сканирования задачи", err)
			return nil, fmt.Errorf("сканирование задачи: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}
	return tasks, nil
}
