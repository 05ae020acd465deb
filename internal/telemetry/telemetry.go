package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"taskPrioritizer/internal/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

type Options struct {
	StdoutMetrics bool
	Interval      time.Duration
	Writer        io.Writer
}

// Setup ставит глобальный MeterProvider. Без экспорта метрики уходят в no-op провайдер
// по умолчанию. Возвращаемая функция сбрасывает накопленное и останавливает экспорт.
func Setup(opts Options) (func(context.Context) error, error) {
	if !opts.StdoutMetrics {
		return func(context.Context) error { return nil }, nil
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
	if err != nil {
		return nil, fmt.Errorf("создание экспортёра метрик: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(opts.Interval))),
	)
	otel.SetMeterProvider(provider)

	logger.Info("Telemetry: Экспорт метрик в stdout включён", zap.Duration("interval", opts.Interval))
	return provider.Shutdown, nil
}
