package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskPrioritizer/internal/logger"
	"taskPrioritizer/internal/models/task"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ErrClassificationUnavailable - модель не ответила корректно, нужен запасной путь
var ErrClassificationUnavailable = errors.New("classification unavailable")

const (
	defaultModel       = "gpt-3.5-turbo"
	defaultTemperature = 0.2
	defaultTimeout     = 10 * time.Second
)

type AIOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// AIClient ходит в OpenAI-совместимый chat completions API
type AIClient struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	timeout     time.Duration
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewAIClient(opts AIOptions) *AIClient {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-classifier",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Classifier: Circuit breaker сменил состояние",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &AIClient{
		endpoint:    strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		client:      httpClient,
		breaker:     breaker,
	}
}

func (c *AIClient) Classify(ctx context.Context, in Input) (Result, error) {
	if c.apiKey == "" {
		return Result{}, fmt.Errorf("%w: API ключ не задан", ErrClassificationUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (any, error) {
		return c.complete(ctx, buildPrompt(in))
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
	}

	result, err := ParseResult(out.(string))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrClassificationUnavailable, err)
	}
	return result, nil
}

func buildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Classify the task below.\n")
	b.WriteString("Reply ONLY with a JSON object of the form ")
	b.WriteString(`{"priority": "low" | "medium" | "high", "status": "pending" | "in_progress" | "completed"}`)
	b.WriteString(" and nothing else.\n")
	fmt.Fprintf(&b, "Title: %s\n", in.Title)
	fmt.Fprintf(&b, "Description: %s\n", in.Description)
	fmt.Fprintf(&b, "Start: %s\n", in.StartDate)
	fmt.Fprintf(&b, "End: %s\n", in.EndDate)
	return b.String()
}

func (c *AIClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("сериализация запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("запрос к модели: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("чтение ответа: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr chatError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("ответ модели %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("ответ модели %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("разбор ответа: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("пустой список choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// ParseResult достаёт первый JSON-объект из текста модели и проверяет значения
func ParseResult(text string) (Result, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Result{}, errors.New("в ответе нет JSON")
	}

	var raw struct {
		Priority *string `json:"priority"`
		Status   *string `json:"status"`
	}
	// декодер читает ровно один объект и игнорирует текст после него
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("разбор JSON: %w", err)
	}
	if raw.Priority == nil || raw.Status == nil {
		return Result{}, errors.New("в ответе нет priority или status")
	}

	result := Result{
		Priority: task.Priority(*raw.Priority),
		Status:   task.Status(*raw.Status),
	}
	if !result.Priority.Valid() {
		return Result{}, fmt.Errorf("недопустимый priority %q", *raw.Priority)
	}
	if !result.Status.Valid() {
		return Result{}, fmt.Errorf("недопустимый status %q", *raw.Status)
	}
	return result, nil
}
