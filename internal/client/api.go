package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/handlers/dto"
	"taskPrioritizer/internal/models/task"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const RevisionHeader = "X-Tasks-Revision"

// APIError - ответ сервера с кодом ошибки
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d %s", e.StatusCode, e.Code)
}

// API - HTTP клиент сервера задач
type API struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

func NewAPI(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// BaseURL нужен подписчику для адреса websocket
func (a *API) BaseURL() string {
	return a.baseURL
}

func (a *API) do(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация запроса: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errBody dto.ErrorResponse
		json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&errBody)
		return nil, &APIError{StatusCode: resp.StatusCode, Code: errBody.Error, Message: errBody.Message}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("разбор ответа %s %s: %w", method, path, err)
		}
	}
	return resp.Header, nil
}

func revisionOf(header http.Header, fallback uint64) uint64 {
	if v, err := strconv.ParseUint(header.Get(RevisionHeader), 10, 64); err == nil {
		return v
	}
	return fallback
}

func (a *API) Register(ctx context.Context, email, password string) error {
	_, err := a.do(ctx, http.MethodPost, "/api/auth/register", dto.Credentials{Email: email, Password: password}, nil)
	return err
}

// Login получает токен и запоминает его для следующих запросов
func (a *API) Login(ctx context.Context, email, password string) (string, error) {
	var res dto.TokenResponse
	if _, err := a.do(ctx, http.MethodPost, "/api/auth/login", dto.Credentials{Email: email, Password: password}, &res); err != nil {
		return "", err
	}
	a.SetToken(res.Token)
	return res.Token, nil
}

func (a *API) List(ctx context.Context) (Snapshot, error) {
	var res dto.TaskListResponse
	header, err := a.do(ctx, http.MethodGet, "/api/tasks", nil, &res)
	if err != nil {
		return Snapshot{}, err
	}

	tasks := make([]task.Task, 0, len(res.Tasks))
	for _, t := range res.Tasks {
		tasks = append(tasks, t.Task())
	}
	return Snapshot{Revision: revisionOf(header, res.Revision), Tasks: tasks}, nil
}

func (a *API) taskCall(ctx context.Context, method, path string, body any) (task.Task, uint64, error) {
	var res dto.TaskEnvelope
	header, err := a.do(ctx, method, path, body, &res)
	if err != nil {
		return task.Task{}, 0, err
	}
	return res.Task.Task(), revisionOf(header, res.Revision), nil
}

func (a *API) Create(ctx context.Context, draft task.Draft) (task.Task, uint64, error) {
	return a.taskCall(ctx, http.MethodPost, "/api/tasks", dto.FromDraft(draft))
}

func (a *API) Update(ctx context.Context, id uuid.UUID, patch task.Patch) (task.Task, uint64, error) {
	return a.taskCall(ctx, http.MethodPut, "/api/tasks/"+id.String(), dto.FromPatch(patch))
}

func (a *API) Start(ctx context.Context, id uuid.UUID) (task.Task, uint64, error) {
	return a.taskCall(ctx, http.MethodPost, "/api/tasks/"+id.String()+"/start", nil)
}

func (a *API) Complete(ctx context.Context, id uuid.UUID) (task.Task, uint64, error) {
	return a.taskCall(ctx, http.MethodPost, "/api/tasks/"+id.String()+"/complete", nil)
}

func (a *API) Delete(ctx context.Context, id uuid.UUID) (uint64, error) {
	header, err := a.do(ctx, http.MethodDelete, "/api/tasks/"+id.String(), nil, nil)
	if err != nil {
		return 0, err
	}
	return revisionOf(header, 0), nil
}

// Classify - рекомендация сервера без сохранения
func (a *API) Classify(ctx context.Context, draft task.Draft) (classifier.Result, error) {
	var res dto.ClassifyResponse
	_, err := a.do(ctx, http.MethodPost, "/api/classify", dto.ClassifyRequest{
		Title:       draft.Title,
		Description: draft.Description,
		StartDate:   draft.StartDate,
		EndDate:     draft.EndDate,
	}, &res)
	if err != nil {
		return classifier.Result{}, err
	}
	return classifier.Result{Priority: res.Priority, Status: res.Status}, nil
}
