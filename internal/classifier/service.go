package classifier

import (
	"context"
	"time"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "taskPrioritizer/internal/classifier"

type Remote interface {
	Classify(ctx context.Context, in Input) (Result, error)
}

// Service - единая точка классификации: модель, а при любой её ошибке - правила.
// Classify никогда не возвращает ошибку.
type Service struct {
	remote  Remote
	rules   Rules
	counter metric.Int64Counter
}

func NewService(remote Remote, rules Rules) *Service {
	counter, err := otel.Meter(instrumentationName).Int64Counter("classifier.classifications",
		metric.WithDescription("Количество классификаций по источнику результата"),
		metric.WithUnit("{classification}"))
	if err != nil {
		logger.Warn("Classifier: Не удалось создать метрику", zap.Error(err))
	}
	return &Service{
		remote:  remote,
		rules:   rules,
		counter: counter,
	}
}

func (s *Service) Classify(ctx context.Context, in Input) Result {
	start := time.Now()

	if s.remote != nil {
		result, err := s.remote.Classify(ctx, in)
		if err == nil {
			s.record(ctx, "ai")
			logger.Debug("Classifier: Результат модели",
				zap.String("priority", string(result.Priority)),
				zap.String("status", string(result.Status)),
				zap.Duration("ms", time.Since(start)))
			return result
		}
		logger.Warn("Classifier: Модель недоступна, используются правила",
			zap.Error(err),
			zap.Duration("ms", time.Since(start)))
	}

	s.record(ctx, "rules")
	return s.rules.Classify(in)
}

// Fill дозаполняет только пустые поля; если оба заданы, классификация не вызывается
func (s *Service) Fill(ctx context.Context, in Input, priority task.Priority, status task.Status) (task.Priority, task.Status) {
	if priority != "" && status != "" {
		return priority, status
	}

	result := s.Classify(ctx, in)
	if priority == "" {
		priority = result.Priority
	}
	if status == "" {
		status = result.Status
	}

	if !priority.Valid() {
		priority = task.DefaultPriority
	}
	if !status.Valid() {
		status = task.DefaultStatus
	}
	return priority, status
}

func (s *Service) record(ctx context.Context, source string) {
	if s.counter == nil {
		return
	}
	s.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
