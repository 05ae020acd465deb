package realtime

import (
	"net/http"
	"slices"

	"taskPrioritizer/internal/auth"
	"taskPrioritizer/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type TokenValidator interface {
	Validate(token string) (uuid.UUID, error)
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// Handler поднимает websocket для GET /ws. Токен берётся из Authorization
// или из параметра token, без валидного токена апгрейд не выполняется.
func (h *Hub) Handler(tokens TokenValidator, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		owner, err := tokens.Validate(token)
		if err != nil {
			logger.Info("Realtime: Отказ в подключении", zap.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade уже ответил клиенту
			logger.Warn("Realtime: Ошибка апгрейда соединения", zap.Error(err))
			return
		}

		s := newSession(conn, owner, h.opts.SendBuffer)
		if err := h.register(r.Context(), s); err != nil {
			s.close()
			return
		}
		logger.Info("Realtime: Сессия подключена", zap.String("owner_id", owner.String()))

		go s.writePump(h.opts.WriteTimeout, h.opts.PingInterval)
		s.readPump(h.opts.PingInterval * 2)

		h.unregister(s)
		logger.Info("Realtime: Сессия отключена", zap.String("owner_id", owner.String()))
	}
}
