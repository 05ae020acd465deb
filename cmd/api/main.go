package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"taskPrioritizer/internal/app"
	"taskPrioritizer/internal/config"
	"taskPrioritizer/internal/logger"

	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "путь к config.yml")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "конфигурация:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg)
	if err := application.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "инициализация:", err)
		application.Shutdown()
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("Сервер остановлен с ошибкой", err)
		os.Exit(1)
	}
}
