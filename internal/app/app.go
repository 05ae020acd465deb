package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskPrioritizer/internal/auth"
	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/config"
	"taskPrioritizer/internal/handlers"
	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/middleware"
	"taskPrioritizer/internal/realtime"
	"taskPrioritizer/internal/repository/migrations"
	taskinmemory "taskPrioritizer/internal/repository/task/inmemory"
	taskpostgres "taskPrioritizer/internal/repository/task/postgres"
	userinmemory "taskPrioritizer/internal/repository/user/inmemory"
	userpostgres "taskPrioritizer/internal/repository/user/postgres"
	"taskPrioritizer/internal/service"
	"taskPrioritizer/internal/telemetry"
	"taskPrioritizer/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config      *config.Config
	server      *http.Server
	router      *chi.Mux
	repository  service.TaskRepository
	users       service.UserRepository
	tokens      *auth.Tokens
	hub         *realtime.Hub
	taskService *service.TaskService
	authService *service.AuthService
	worker      *worker.ActivationWorker
	shutdowns   []func(ctx context.Context) // функции для graceful shutdown, выполняются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(ctx context.Context), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	var file *logger.FileOptions
	if a.config.Logging.File != "" {
		file = &logger.FileOptions{
			Path:       a.config.Logging.File,
			MaxSizeMB:  a.config.Logging.MaxSizeMB,
			MaxBackups: a.config.Logging.MaxBackups,
			MaxAgeDays: a.config.Logging.MaxAgeDays,
		}
	}
	if err := logger.Init(a.config.Logging.Development, file); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.onShutdown(func(context.Context) {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	// провайдер метрик ставится до создания инструментов
	shutdownMetrics, err := telemetry.Setup(telemetry.Options{
		StdoutMetrics: a.config.Telemetry.StdoutMetrics,
		Interval:      a.config.Telemetry.Interval,
	})
	if err != nil {
		return fmt.Errorf("инициализация метрик: %w", err)
	}
	a.onShutdown(func(ctx context.Context) {
		if err := shutdownMetrics(ctx); err != nil {
			logger.Warn("Ошибка остановки метрик", zap.Error(err))
		}
	})

	if err := a.initRepositories(ctx); err != nil {
		return err
	}

	a.tokens = auth.NewTokens(a.config.Auth.JWTSecret, a.config.Auth.TokenTTL)
	a.hub = realtime.NewHub(a.repository, realtime.Options{
		WriteTimeout: a.config.Realtime.WriteTimeout,
		PingInterval: a.config.Realtime.PingInterval,
		SendBuffer:   a.config.Realtime.SendBuffer,
	})
	a.onShutdown(func(context.Context) {
		logger.Info("Закрытие websocket сессий...")
		a.hub.Close()
	})

	a.taskService = service.NewTaskService(a.repository, a.newClassifier(), a.hub)
	a.authService = service.NewAuthService(a.users, a.tokens)

	if a.config.Worker.Enabled {
		a.worker = worker.NewActivationWorker(a.taskService, &a.config.Worker.Interval, &a.config.Worker.BatchSize)
	}

	a.initRouter()
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(a.router, "task-prioritizer"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.config.Server.RequestTimeout,
		WriteTimeout:      a.config.Server.RequestTimeout,
	}
	return nil
}

func (a *App) onShutdown(fn func(ctx context.Context)) {
	a.shutdowns = append(a.shutdowns, fn)
}

func (a *App) initRepositories(ctx context.Context) error {
	switch a.config.Repository.Type {
	case "postgres":
		if a.config.Database.Migrate {
			if err := migrations.Up(a.config.Database.URL); err != nil {
				return fmt.Errorf("применение миграций: %w", err)
			}
		}

		pool, err := taskpostgres.NewPool(ctx, a.config.Database.URL, taskpostgres.PoolOptions{
			MaxConns:        a.config.Database.MaxConnections,
			MinConns:        a.config.Database.MinConnections,
			MaxConnIdleTime: a.config.Database.IdleTimeout,
		})
		if err != nil {
			return fmt.Errorf("подключение к базе: %w", err)
		}
		tasks := taskpostgres.New(pool)
		a.repository = tasks
		a.users = userpostgres.New(pool)
		a.onShutdown(func(context.Context) {
			logger.Info("Закрытие пула соединений...")
			tasks.Close()
		})

	default:
		logger.Warn("Используется inmemory хранилище, данные не переживут перезапуск")
		a.repository = taskinmemory.NewTaskStorage()
		a.users = userinmemory.NewUserStorage()
	}

	logger.Info("Хранилище инициализировано", zap.String("type", a.config.Repository.Type))
	return nil
}

// newClassifier подключает модель только при наличии ключа, иначе работают правила
func (a *App) newClassifier() *classifier.Service {
	var remote classifier.Remote
	if a.config.AI.Enabled && a.config.AI.APIKey != "" {
		remote = classifier.NewAIClient(classifier.AIOptions{
			BaseURL:     a.config.AI.BaseURL,
			APIKey:      a.config.AI.APIKey,
			Model:       a.config.AI.Model,
			Temperature: a.config.AI.Temperature,
			Timeout:     a.config.AI.Timeout,
		})
		logger.Info("Классификация через модель включена", zap.String("model", a.config.AI.Model))
	} else {
		logger.Info("Классификация только по правилам")
	}
	return classifier.NewService(remote, classifier.NewRules(nil))
}

func (a *App) initRouter() {
	taskHandler := handlers.NewTaskHandler(a.taskService)
	authHandler := handlers.NewAuthHandler(a.authService)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", handlers.RevisionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(a.config.Server.RateLimit))

	r.Get("/health", taskHandler.HealthCheck)
	r.Get("/ws", a.hub.Handler(a.tokens, a.config.Server.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register) // POST /api/auth/register
		r.Post("/auth/login", authHandler.Login)       // POST /api/auth/login

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(a.tokens))

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskHandler.GetTasks)  // GET /api/tasks
				r.Post("/", taskHandler.PostTask) // POST /api/tasks

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", taskHandler.GetTaskByID)       // GET /api/tasks/{id}
					r.Put("/", taskHandler.UpdateTaskByID)    // PUT /api/tasks/{id}
					r.Delete("/", taskHandler.DeleteTaskByID) // DELETE /api/tasks/{id}

					r.Post("/start", taskHandler.StartTask)       // POST /api/tasks/{id}/start
					r.Post("/complete", taskHandler.CompleteTask) // POST /api/tasks/{id}/complete
				})
			})

			r.Post("/classify", taskHandler.Classify) // POST /api/classify
			r.Get("/board", taskHandler.GetBoard)     // GET /api/board
		})
	})

	a.router = r
}

// Handler отдаёт собранный роутер, используется в тестах
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run работает до отмены контекста, затем корректно останавливает сервер и воркер
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})

	if a.worker != nil {
		g.Go(func() error {
			a.worker.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Остановка сервера...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// websocket сессии не отслеживаются http.Server, их закрывает хаб
		a.hub.Close()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Shutdown()
	return err
}

func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i](ctx)
	}
	a.shutdowns = nil
}
