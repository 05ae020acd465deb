package classifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskPrioritizer/internal/classifier"
	"taskPrioritizer/internal/models/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.InDelta(t, 0.2, body.Temperature, 0.0001)
		require.Len(t, body.Messages, 1)
		assert.Contains(t, body.Messages[0].Content, "Title: Submit report")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
}

func TestAIClient_Classify(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		content     string
		expected    classifier.Result
		expectError bool
	}{
		{
			name:     "success - plain json",
			status:   http.StatusOK,
			content:  `{"priority":"high","status":"in_progress"}`,
			expected: classifier.Result{Priority: task.PriorityHigh, Status: task.StatusInProgress},
		},
		{
			name:     "success - json wrapped in prose",
			status:   http.StatusOK,
			content:  "Sure! Here it is: {\"priority\": \"low\", \"status\": \"pending\"} Hope it helps {}",
			expected: classifier.Result{Priority: task.PriorityLow, Status: task.StatusPending},
		},
		{
			name:        "error - non 2xx",
			status:      http.StatusTooManyRequests,
			expectError: true,
		},
		{
			name:        "error - no json",
			status:      http.StatusOK,
			content:     "high priority, pending",
			expectError: true,
		},
		{
			name:        "error - value outside enumeration",
			status:      http.StatusOK,
			content:     `{"priority":"critical","status":"pending"}`,
			expectError: true,
		},
		{
			name:        "error - missing field",
			status:      http.StatusOK,
			content:     `{"priority":"high"}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.status, tt.content)
			defer server.Close()

			client := classifier.NewAIClient(classifier.AIOptions{
				BaseURL: server.URL,
				APIKey:  "test-key",
			})

			result, err := client.Classify(context.Background(), classifier.Input{
				Title:       "Submit report",
				Description: "quarterly numbers",
			})

			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, classifier.ErrClassificationUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestAIClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := classifier.NewAIClient(classifier.AIOptions{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 50 * time.Millisecond,
	})

	start := time.Now()
	_, err := client.Classify(context.Background(), classifier.Input{Title: "a", Description: "b"})

	assert.ErrorIs(t, err, classifier.ErrClassificationUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAIClient_MissingKey(t *testing.T) {
	client := classifier.NewAIClient(classifier.AIOptions{BaseURL: "http://127.0.0.1:1"})

	_, err := client.Classify(context.Background(), classifier.Input{Title: "a", Description: "b"})

	assert.ErrorIs(t, err, classifier.ErrClassificationUnavailable)
}

func TestParseResult(t *testing.T) {
	_, err := classifier.ParseResult(`{"priority": "high", "status": }`)
	assert.Error(t, err)

	result, err := classifier.ParseResult("```json\n{\"priority\":\"medium\",\"status\":\"completed\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, task.PriorityMedium, result.Priority)
	assert.Equal(t, task.StatusCompleted, result.Status)
}
