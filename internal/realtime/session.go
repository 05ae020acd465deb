package realtime

import (
	"sync"
	"time"

	"taskPrioritizer/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxIncomingMessage = 512

type session struct {
	conn  *websocket.Conn
	owner uuid.UUID
	send  chan []byte
	done  chan struct{}
	once  sync.Once
}

func newSession(conn *websocket.Conn, owner uuid.UUID, buffer int) *session {
	return &session{
		conn:  conn,
		owner: owner,
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// writePump - единственный писатель в соединение
func (s *session) writePump(writeTimeout, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("Realtime: Ошибка записи в сессию", zap.Error(err))
				s.close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.close()
				return
			}
		case <-s.done:
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// readPump читает только управляющие кадры и ждёт закрытия соединения
func (s *session) readPump(pongWait time.Duration) {
	s.conn.SetReadLimit(maxIncomingMessage)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Realtime: Сессия закрыта с ошибкой", zap.Error(err))
			}
			return
		}
	}
}
