package realtime_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskPrioritizer/internal/models/task"
	"taskPrioritizer/internal/realtime"
	"taskPrioritizer/internal/repository/task/inmemory"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticTokens принимает токен вида "user:<uuid>"
type staticTokens struct{}

func (staticTokens) Validate(token string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(token, "user:")
	if !ok {
		return uuid.Nil, errors.New("bad token")
	}
	return uuid.Parse(raw)
}

type fixture struct {
	hub     *realtime.Hub
	storage *inmemory.TaskStorage
	server  *httptest.Server
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	storage := inmemory.NewTaskStorage()
	hub := realtime.NewHub(storage, realtime.Options{WriteTimeout: time.Second, PingInterval: time.Second})
	server := httptest.NewServer(hub.Handler(staticTokens{}, []string{"*"}))
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return fixture{hub: hub, storage: storage, server: server}
}

func (f fixture) dial(t *testing.T, owner uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=user:" + owner.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) realtime.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg realtime.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitSessions(t *testing.T, hub *realtime.Hub, owner uuid.UUID, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Sessions(owner) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_InitialSnapshotAndPublish(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	ctx := context.Background()

	require.NoError(t, f.storage.Create(ctx, &task.Task{
		ID: uuid.New(), OwnerID: owner, Title: "first", Description: "d",
		Priority: task.PriorityLow, Status: task.StatusPending,
	}))

	conn := f.dial(t, owner)
	initial := readMessage(t, conn)
	assert.Equal(t, realtime.TypeTasksUpdate, initial.Type)
	assert.Len(t, initial.Tasks, 1)
	assert.Equal(t, f.hub.Revision(owner), initial.Revision)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, f.storage.Create(ctx, &task.Task{
		ID: uuid.New(), OwnerID: owner, Title: "second", Description: "d",
		Priority: task.PriorityLow, Status: task.StatusPending,
	}))
	revision, err := f.hub.Publish(ctx, owner)
	require.NoError(t, err)
	assert.Greater(t, revision, initial.Revision)

	pushed := readMessage(t, conn)
	assert.Equal(t, revision, pushed.Revision)
	require.Len(t, pushed.Tasks, 2)
	assert.Equal(t, "second", pushed.Tasks[0].Title)
}

func TestHub_OnlyOwnerSessionsReceive(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()

	aliceConn := f.dial(t, alice)
	readMessage(t, aliceConn)
	secondAlice := f.dial(t, alice)
	readMessage(t, secondAlice)
	bobConn := f.dial(t, bob)
	readMessage(t, bobConn)
	waitSessions(t, f.hub, alice, 2)

	revision, err := f.hub.Publish(context.Background(), alice)
	require.NoError(t, err)

	assert.Equal(t, revision, readMessage(t, aliceConn).Revision)
	assert.Equal(t, revision, readMessage(t, secondAlice).Revision)

	bobConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = bobConn.ReadMessage()
	assert.Error(t, err, "bob must not receive alice's update")
}

func TestHub_RevisionsAreMonotonic(t *testing.T) {
	hub := realtime.NewHub(inmemory.NewTaskStorage(), realtime.Options{})
	owner := uuid.New()

	start := hub.Revision(owner)
	assert.Greater(t, start, uint64(time.Now().Add(-time.Hour).UnixNano()))

	prev := start
	for i := 0; i < 5; i++ {
		next, err := hub.Publish(context.Background(), owner)
		require.NoError(t, err)
		assert.Greater(t, next, prev)
		prev = next
	}
	assert.Equal(t, prev, hub.Revision(owner))
}

func TestHub_RejectsMissingToken(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer garbage"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_BearerHeaderAccepted(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer user:" + owner.String()}})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, realtime.TypeTasksUpdate, readMessage(t, conn).Type)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	conn := f.dial(t, owner)
	readMessage(t, conn)
	waitSessions(t, f.hub, owner, 1)

	conn.Close()
	waitSessions(t, f.hub, owner, 0)
}
