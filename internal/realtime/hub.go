package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "taskPrioritizer/internal/realtime"

const TypeTasksUpdate = "tasks:update"

var ErrHubClosed = errors.New("хаб остановлен")

// Message - полный список задач владельца на момент ревизии
type Message struct {
	Type     string       `json:"type"`
	Revision uint64       `json:"revision"`
	Tasks    []*task.Task `json:"tasks"`
}

type Lister interface {
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*task.Task, error)
}

type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendBuffer   int
}

// room - открытые сессии одного владельца. Комната живёт, пока в ней есть сессии;
// удалённая комната помечается dead, и её больше не используют.
type room struct {
	mu       sync.Mutex
	sessions map[*session]struct{}
	dead     bool
}

// Hub рассылает снимки задач всем сессиям владельца. Ревизии растут монотонно
// в пределах владельца и стартуют от текущего времени, поэтому переживают рестарт.
// Для владельцев без сессий хранится только счётчик ревизии.
type Hub struct {
	lister Lister
	opts   Options
	clock  func() time.Time

	mu        sync.Mutex
	rooms     map[uuid.UUID]*room
	revisions map[uuid.UUID]uint64
	closed    bool

	sessionsGauge metric.Int64UpDownCounter
	pushCounter   metric.Int64Counter
}

func NewHub(lister Lister, opts Options) *Hub {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}

	meter := otel.Meter(instrumentationName)
	sessionsGauge, err := meter.Int64UpDownCounter("realtime.sessions",
		metric.WithDescription("Открытые websocket сессии"))
	if err != nil {
		logger.Warn("Realtime: Не удалось создать метрику", zap.Error(err))
	}
	pushCounter, err := meter.Int64Counter("realtime.pushes",
		metric.WithDescription("Отправленные снимки задач"))
	if err != nil {
		logger.Warn("Realtime: Не удалось создать метрику", zap.Error(err))
	}

	return &Hub{
		lister:        lister,
		opts:          opts,
		clock:         time.Now,
		rooms:         make(map[uuid.UUID]*room),
		revisions:     make(map[uuid.UUID]uint64),
		sessionsGauge: sessionsGauge,
		pushCounter:   pushCounter,
	}
}

// lockRoom возвращает запертую живую комнату владельца. Без create вернёт nil,
// если комнаты нет; с create вернёт nil только после Close.
// Порядок блокировок: r.mu, затем h.mu. h.mu не держится при ожидании r.mu.
func (h *Hub) lockRoom(owner uuid.UUID, create bool) *room {
	for {
		h.mu.Lock()
		r, ok := h.rooms[owner]
		if !ok {
			if !create || h.closed {
				h.mu.Unlock()
				return nil
			}
			r = &room{sessions: make(map[*session]struct{})}
			h.rooms[owner] = r
		}
		h.mu.Unlock()

		r.mu.Lock()
		if !r.dead {
			return r
		}
		r.mu.Unlock()
	}
}

// dropIfEmptyLocked удаляет комнату без сессий. Вызывается под r.mu.
func (h *Hub) dropIfEmptyLocked(owner uuid.UUID, r *room) {
	if len(r.sessions) > 0 || r.dead {
		return
	}
	r.dead = true

	h.mu.Lock()
	if h.rooms[owner] == r {
		delete(h.rooms, owner)
	}
	h.mu.Unlock()
}

func (h *Hub) revisionLocked(owner uuid.UUID) uint64 {
	revision, ok := h.revisions[owner]
	if !ok {
		revision = uint64(h.clock().UnixNano())
		h.revisions[owner] = revision
	}
	return revision
}

func (h *Hub) Revision(owner uuid.UUID) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revisionLocked(owner)
}

func (h *Hub) nextRevision(owner uuid.UUID) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	revision := h.revisionLocked(owner) + 1
	h.revisions[owner] = revision
	return revision
}

// Publish поднимает ревизию владельца и рассылает свежий список задач.
// Под замком комнаты ревизия и выборка идут в одном порядке для всех вызовов.
func (h *Hub) Publish(ctx context.Context, owner uuid.UUID) (uint64, error) {
	r := h.lockRoom(owner, false)
	if r == nil {
		return h.nextRevision(owner), nil
	}
	defer r.mu.Unlock()

	revision := h.nextRevision(owner)

	data, err := h.snapshot(ctx, owner, revision)
	if err != nil {
		return revision, err
	}

	for s := range r.sessions {
		h.deliver(r, s, data)
	}
	h.dropIfEmptyLocked(owner, r)
	return revision, nil
}

func (h *Hub) snapshot(ctx context.Context, owner uuid.UUID, revision uint64) ([]byte, error) {
	tasks, err := h.lister.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("получение задач для рассылки: %w", err)
	}

	data, err := json.Marshal(Message{Type: TypeTasksUpdate, Revision: revision, Tasks: tasks})
	if err != nil {
		return nil, fmt.Errorf("сериализация снимка: %w", err)
	}
	return data, nil
}

// deliver кладёт снимок в очередь сессии, медленная сессия отключается. Вызывается под r.mu.
func (h *Hub) deliver(r *room, s *session, data []byte) {
	select {
	case s.send <- data:
		if h.pushCounter != nil {
			h.pushCounter.Add(context.Background(), 1)
		}
	default:
		logger.Warn("Realtime: Очередь сессии переполнена, отключение",
			zap.String("owner_id", s.owner.String()))
		delete(r.sessions, s)
		h.sessionClosed()
		s.close()
	}
}

// register добавляет сессию и сразу отправляет ей текущий снимок без смены ревизии
func (h *Hub) register(ctx context.Context, s *session) error {
	r := h.lockRoom(s.owner, true)
	if r == nil {
		return ErrHubClosed
	}
	defer r.mu.Unlock()

	r.sessions[s] = struct{}{}
	if h.sessionsGauge != nil {
		h.sessionsGauge.Add(context.Background(), 1)
	}

	data, err := h.snapshot(ctx, s.owner, h.Revision(s.owner))
	if err != nil {
		logger.Warn("Realtime: Не удалось отправить начальный снимок", zap.Error(err))
		return nil
	}
	h.deliver(r, s, data)
	h.dropIfEmptyLocked(s.owner, r)
	return nil
}

func (h *Hub) unregister(s *session) {
	if r := h.lockRoom(s.owner, false); r != nil {
		if _, ok := r.sessions[s]; ok {
			delete(r.sessions, s)
			h.sessionClosed()
		}
		h.dropIfEmptyLocked(s.owner, r)
		r.mu.Unlock()
	}
	s.close()
}

func (h *Hub) sessionClosed() {
	if h.sessionsGauge != nil {
		h.sessionsGauge.Add(context.Background(), -1)
	}
}

// Sessions - число открытых сессий владельца
func (h *Hub) Sessions(owner uuid.UUID) int {
	r := h.lockRoom(owner, false)
	if r == nil {
		return 0
	}
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close отключает все сессии, новые подключения отклоняются
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	rooms := make(map[uuid.UUID]*room, len(h.rooms))
	for owner, r := range h.rooms {
		rooms[owner] = r
	}
	h.mu.Unlock()

	for owner, r := range rooms {
		r.mu.Lock()
		for s := range r.sessions {
			delete(r.sessions, s)
			h.sessionClosed()
			s.close()
		}
		h.dropIfEmptyLocked(owner, r)
		r.mu.Unlock()
	}
	logger.Info("Realtime: Все сессии закрыты")
}
