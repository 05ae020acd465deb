package worker

import (
	"context"
	"time"

	"taskPrioritizer/internal/logger"

	"go.uber.org/zap"
)

type Activator interface {
	ActivateStarted(ctx context.Context, deadline time.Time, limit int) (int, error)
}

// ActivationWorker переводит в работу ожидающие задачи, у которых наступила дата начала
type ActivationWorker struct {
	service   Activator
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewActivationWorker(service Activator, interval *time.Duration, batchSize *int) *ActivationWorker {
	var intervalToSet time.Duration
	if interval == nil || *interval <= 0 {
		intervalToSet = 5 * time.Minute
	} else {
		intervalToSet = *interval
	}

	var batchToSet int
	if batchSize == nil || *batchSize <= 0 {
		batchToSet = 100
	} else {
		batchToSet = *batchSize
	}

	return &ActivationWorker{
		service:   service,
		interval:  intervalToSet,
		batchSize: batchToSet,
		now:       time.Now,
	}
}

// Start блокирует до отмены контекста. Первая проверка выполняется сразу.
func (w *ActivationWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check(ctx)
	for {
		select {
		case <-ticker.C:
			logger.Info("Worker: Фоновая проверка задач на начало", zap.Time("started_at", w.now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая проверка останавливается")
			return
		}
	}
}

// deadline - начало завтрашнего дня: дата начала считается наступившей весь день
func (w *ActivationWorker) deadline() time.Time {
	now := w.now()
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// Check обрабатывает пачки, пока они заполняются целиком
func (w *ActivationWorker) Check(ctx context.Context) int {
	start := time.Now()
	total := 0

	for ctx.Err() == nil {
		activated, err := w.service.ActivateStarted(ctx, w.deadline(), w.batchSize)
		if err != nil {
			logger.Warn("Worker: ошибка активации задач", zap.Error(err))
			break
		}
		total += activated
		if activated < w.batchSize {
			break
		}
	}

	logger.Info(
		"Worker: Завершение проверки задач",
		zap.Duration("ms", time.Since(start)),
		zap.Int("activated", total),
	)
	return total
}
