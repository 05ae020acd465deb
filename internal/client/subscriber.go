package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"
	"taskPrioritizer/internal/realtime"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrUnauthorized = errors.New("подписка отклонена: нет действительного токена")

// Sink принимает снимки из канала обновлений
type Sink interface {
	ApplySnapshot(s Snapshot) bool
	Refresh(ctx context.Context) error
}

// Subscriber держит websocket соединение и переподключается с экспоненциальной
// задержкой. Ошибки соединения только логируются и не трогают данные задач.
type Subscriber struct {
	url    string
	token  func() string
	sink   Sink
	dialer *websocket.Dialer

	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func NewSubscriber(baseURL string, token func() string, sink Sink) *Subscriber {
	url := strings.TrimRight(baseURL, "/") + "/ws"
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	return &Subscriber{
		url:             url,
		token:           token,
		sink:            sink,
		dialer:          &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
	}
}

// Run работает до отмены контекста или до отказа в авторизации
func (s *Subscriber) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialInterval
	b.MaxInterval = s.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		err := s.session(ctx, b)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}

		wait := b.NextBackOff()
		logger.Warn("Client: Соединение с каналом обновлений потеряно",
			zap.Error(err),
			zap.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Subscriber) session(ctx context.Context, b backoff.BackOff) error {
	token := s.token()
	if token == "" {
		return ErrUnauthorized
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("подключение: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	b.Reset()
	logger.Info("Client: Подписка на обновления установлена")

	// пропущенные за время разрыва изменения подтягиваются полным списком
	if err := s.sink.Refresh(ctx); err != nil {
		logger.Warn("Client: Не удалось обновить список после подключения", zap.Error(err))
	}

	for {
		var msg realtime.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("чтение сообщения: %w", err)
		}
		if msg.Type != realtime.TypeTasksUpdate {
			continue
		}

		tasks := make([]task.Task, 0, len(msg.Tasks))
		for _, t := range msg.Tasks {
			if t != nil {
				tasks = append(tasks, *t)
			}
		}
		s.sink.ApplySnapshot(Snapshot{Revision: msg.Revision, Tasks: tasks})
	}
}
