package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"taskPrioritizer/internal/models/task"
	"taskPrioritizer/internal/models/user"
	"taskPrioritizer/internal/repository"
	"taskPrioritizer/internal/repository/migrations"
	"taskPrioritizer/internal/repository/task/postgres"
	userpg "taskPrioritizer/internal/repository/user/postgres"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestSuite для интеграционных тестов с PostgreSQL
type PostgresTestSuite struct {
	suite.Suite
	container testcontainers.Container
	pool      *pgxpool.Pool
	storage   *postgres.Storage
	users     *userpg.Storage
	ctx       context.Context
}

// SetupSuite запускается один раз перед всеми тестами
func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)

	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	require.NoError(s.T(), migrations.Up(connString))

	s.pool, err = postgres.NewPool(s.ctx, connString, postgres.PoolOptions{})
	require.NoError(s.T(), err)

	s.storage = postgres.New(s.pool)
	s.users = userpg.New(s.pool)
}

// TearDownSuite очищает после всех тестов
func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		s.container.Terminate(s.ctx)
	}
}

// SetupTest очищает таблицы перед каждым тестом
func (s *PostgresTestSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE tasks, users CASCADE")
	require.NoError(s.T(), err)
}

// TestPostgresTestSuite запускает suite
func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционные тесты в коротком режиме")
	}
	suite.Run(t, new(PostgresTestSuite))
}

func (s *PostgresTestSuite) newOwner() uuid.UUID {
	u := &user.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", PasswordHash: "hash"}
	require.NoError(s.T(), s.users.Create(s.ctx, u))
	return u.ID
}

func newTask(owner uuid.UUID, title string) *task.Task {
	return &task.Task{
		ID:          uuid.New(),
		OwnerID:     owner,
		Title:       title,
		Description: "Test Description",
		Priority:    task.PriorityMedium,
		Status:      task.StatusPending,
	}
}

// TestStorage_Create тестирует создание задачи
func (s *PostgresTestSuite) TestStorage_Create() {
	owner := s.newOwner()

	taskToCreate := newTask(owner, "Test Task")
	taskToCreate.StartDate = task.Some(time.Now().Add(-time.Hour).UTC().Truncate(time.Second))

	require.NoError(s.T(), s.storage.Create(s.ctx, taskToCreate))
	assert.False(s.T(), taskToCreate.CreatedAt.IsZero())
	assert.Equal(s.T(), 1, taskToCreate.Version)

	retrieved, err := s.storage.GetByID(s.ctx, owner, taskToCreate.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Test Task", retrieved.Title)
	assert.True(s.T(), retrieved.StartDate.Equal(taskToCreate.StartDate))
	assert.True(s.T(), retrieved.EndDate.IsZero())
	assert.Nil(s.T(), retrieved.UpdatedAt)

	assert.ErrorIs(s.T(), s.storage.Create(s.ctx, taskToCreate), repository.ErrDuplicate)
}

// TestStorage_GetByID_OtherOwner тестирует изоляцию владельцев
func (s *PostgresTestSuite) TestStorage_GetByID_OtherOwner() {
	owner := s.newOwner()
	taskToCreate := newTask(owner, "Private")
	require.NoError(s.T(), s.storage.Create(s.ctx, taskToCreate))

	_, err := s.storage.GetByID(s.ctx, s.newOwner(), taskToCreate.ID)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

// TestStorage_Update тестирует обновление задачи
func (s *PostgresTestSuite) TestStorage_Update() {
	owner := s.newOwner()
	taskToUpdate := newTask(owner, "Original")
	require.NoError(s.T(), s.storage.Create(s.ctx, taskToUpdate))

	taskToUpdate.Title = "Updated"
	taskToUpdate.Priority = task.PriorityHigh
	taskToUpdate.EndDate = task.Some(time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second))
	require.NoError(s.T(), s.storage.Update(s.ctx, taskToUpdate))
	assert.Equal(s.T(), 2, taskToUpdate.Version)
	assert.NotNil(s.T(), taskToUpdate.UpdatedAt)

	retrieved, err := s.storage.GetByID(s.ctx, owner, taskToUpdate.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Updated", retrieved.Title)
	assert.Equal(s.T(), task.PriorityHigh, retrieved.Priority)
	assert.True(s.T(), retrieved.EndDate.Equal(taskToUpdate.EndDate))
}

// TestStorage_Update_VersionConflict тестирует оптимистичную блокировку
func (s *PostgresTestSuite) TestStorage_Update_VersionConflict() {
	owner := s.newOwner()
	taskToUpdate := newTask(owner, "Versioned")
	require.NoError(s.T(), s.storage.Create(s.ctx, taskToUpdate))

	stale := *taskToUpdate
	require.NoError(s.T(), s.storage.Update(s.ctx, taskToUpdate))

	stale.Title = "stale write"
	assert.ErrorIs(s.T(), s.storage.Update(s.ctx, &stale), repository.ErrVersionConflict)

	missing := newTask(owner, "missing")
	assert.ErrorIs(s.T(), s.storage.Update(s.ctx, missing), repository.ErrNotFound)
}

// TestStorage_Delete тестирует удаление
func (s *PostgresTestSuite) TestStorage_Delete() {
	owner := s.newOwner()
	taskToDelete := newTask(owner, "Delete me")
	require.NoError(s.T(), s.storage.Create(s.ctx, taskToDelete))

	assert.ErrorIs(s.T(), s.storage.Delete(s.ctx, s.newOwner(), taskToDelete.ID), repository.ErrNotFound)
	require.NoError(s.T(), s.storage.Delete(s.ctx, owner, taskToDelete.ID))
	assert.ErrorIs(s.T(), s.storage.Delete(s.ctx, owner, taskToDelete.ID), repository.ErrNotFound)
}

// TestStorage_ListByOwner тестирует порядок и фильтрацию по владельцу
func (s *PostgresTestSuite) TestStorage_ListByOwner() {
	owner := s.newOwner()
	other := s.newOwner()

	for i := 0; i < 3; i++ {
		require.NoError(s.T(), s.storage.Create(s.ctx, newTask(owner, fmt.Sprintf("Task %d", i))))
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(s.T(), s.storage.Create(s.ctx, newTask(other, "Foreign")))

	tasks, err := s.storage.ListByOwner(s.ctx, owner)
	require.NoError(s.T(), err)
	require.Len(s.T(), tasks, 3)
	assert.Equal(s.T(), "Task 2", tasks[0].Title)
	assert.Equal(s.T(), "Task 0", tasks[2].Title)
}

// TestStorage_ListPendingStartedBefore тестирует выборку для воркера
func (s *PostgresTestSuite) TestStorage_ListPendingStartedBefore() {
	owner := s.newOwner()
	now := time.Now()

	started := newTask(owner, "Started")
	started.StartDate = task.Some(now.Add(-time.Hour))
	future := newTask(owner, "Future")
	future.StartDate = task.Some(now.Add(time.Hour))
	done := newTask(owner, "Done")
	done.StartDate = task.Some(now.Add(-time.Hour))
	done.Status = task.StatusCompleted
	noDate := newTask(owner, "No date")
	chosen := newTask(owner, "Chosen")
	chosen.StartDate = task.Some(now.Add(-time.Hour))

	for _, t := range []*task.Task{started, future, done, noDate} {
		t.StatusAuto = true
	}
	for _, t := range []*task.Task{started, future, done, noDate, chosen} {
		require.NoError(s.T(), s.storage.Create(s.ctx, t))
	}

	tasks, err := s.storage.ListPendingStartedBefore(s.ctx, now, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), tasks, 1)
	assert.Equal(s.T(), started.ID, tasks[0].ID)
	assert.True(s.T(), tasks[0].StatusAuto)
}

// TestUsers_CreateAndGet тестирует хранилище пользователей
func (s *PostgresTestSuite) TestUsers_CreateAndGet() {
	u := &user.User{ID: uuid.New(), Email: "Carol@Example.com", PasswordHash: "hash"}
	require.NoError(s.T(), s.users.Create(s.ctx, u))

	got, err := s.users.GetByEmail(s.ctx, "carol@example.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, got.ID)

	dup := &user.User{ID: uuid.New(), Email: "carol@example.com", PasswordHash: "x"}
	assert.ErrorIs(s.T(), s.users.Create(s.ctx, dup), repository.ErrDuplicate)

	_, err = s.users.GetByEmail(s.ctx, "nobody@example.com")
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

// TestStorage_HealthCheck тестирует проверку здоровья
func (s *PostgresTestSuite) TestStorage_HealthCheck() {
	assert.NoError(s.T(), s.storage.HealthCheck(s.ctx))
}

// TestNewPool_InvalidConnString тестирует ошибку конфигурации без контейнера
func TestNewPool_InvalidConnString(t *testing.T) {
	_, err := postgres.NewPool(context.Background(), "not a conn string ::", postgres.PoolOptions{})
	assert.Error(t, err)
}
