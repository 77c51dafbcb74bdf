package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinehq/koine-go/config"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.NewConfig()
	config.ApplyOptions(cfg,
		config.SetBaseURL(baseURL),
		config.SetAuthKey("test-key"),
		config.SetModel("sonnet"),
	)
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewClientRequiresAuthKey(t *testing.T) {
	cfg := config.NewConfig()
	_, err := NewClient(cfg)
	assert.Error(t, err)
}

func TestGenerateTextSuccess(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate-text", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotBody))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"text":      "Hello, world!",
			"usage":     Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
			"sessionId": "session-123",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.GenerateText(context.Background(), TextRequest{
		Prompt: "Say hello",
		System: "You are a French assistant",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, world!", result.Text)
	assert.Equal(t, "session-123", result.SessionID)
	assert.Equal(t, 10, result.Usage.InputTokens)
	assert.Equal(t, 5, result.Usage.OutputTokens)

	assert.Equal(t, "Say hello", gotBody["prompt"])
	assert.Equal(t, "You are a French assistant", gotBody["system"])
	assert.Equal(t, "sonnet", gotBody["model"])
}

func TestGenerateTextOmitsEmptyFields(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotBody))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"text":      "ok",
			"usage":     Usage{TotalTokens: 1},
			"sessionId": "s",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "test"})
	require.NoError(t, err)

	assert.NotContains(t, gotBody, "system")
	assert.NotContains(t, gotBody, "sessionId")
	assert.NotContains(t, gotBody, "schema")
}

func TestGenerateTextGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{
			"error": "Invalid API key",
			"code":  "UNAUTHORIZED",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "test"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", ErrorCode(err))
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestGenerateTextHTTPErrorNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "test"})
	require.Error(t, err)
	assert.Equal(t, CodeHTTPError, ErrorCode(err))
	assert.Contains(t, err.Error(), "500")
}

func TestGenerateTextInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"unexpected": "format"})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "test"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidResponse, ErrorCode(err))
}

type person struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age" validate:"required"`
}

func TestGenerateObjectSuccess(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-object", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotBody))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"object":    map[string]any{"name": "Alice", "age": 30},
			"rawText":   `{"name": "Alice", "age": 30}`,
			"usage":     Usage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30},
			"sessionId": "session-789",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := GenerateObject[person](context.Background(), c, TextRequest{Prompt: "Create a person"})
	require.NoError(t, err)

	assert.Equal(t, person{Name: "Alice", Age: 30}, result.Object)
	assert.Equal(t, `{"name": "Alice", "age": 30}`, result.RawText)
	assert.Equal(t, "session-789", result.SessionID)

	// The request must carry a self-contained JSON Schema reflected from the
	// target struct.
	schema, ok := gotBody["schema"].(map[string]any)
	require.True(t, ok, "schema missing from request body: %v", gotBody)
	assert.Equal(t, "object", schema["type"])
	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "name")
	assert.Contains(t, properties, "age")
}

func TestGenerateObjectValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"object":    map[string]any{"name": "Alice"}, // age missing
			"rawText":   `{"name": "Alice"}`,
			"usage":     Usage{TotalTokens: 2},
			"sessionId": "s",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := GenerateObject[person](context.Background(), c, TextRequest{Prompt: "test"})
	require.Error(t, err)
	assert.Equal(t, CodeValidationError, ErrorCode(err))

	var gerr *Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, `{"name": "Alice"}`, gerr.RawText)
}

func TestGenerateObjectGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]string{
			"error": "Invalid schema",
			"code":  "BAD_REQUEST",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := GenerateObject[person](context.Background(), c, TextRequest{Prompt: "test"})
	require.Error(t, err)
	assert.Equal(t, "BAD_REQUEST", ErrorCode(err))
}

func TestGenerateObjectSendsSessionID(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotBody))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"object":    map[string]any{"name": "Carol", "age": 35},
			"rawText":   "{}",
			"usage":     Usage{TotalTokens: 2},
			"sessionId": "continued-session",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := GenerateObject[person](context.Background(), c, TextRequest{
		Prompt:    "test",
		SessionID: "existing-session",
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-session", gotBody["sessionId"])
}

func TestStreamTextEndToEnd(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stream", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotBody))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		// Write events in separate flushes so the client sees multiple
		// network chunks.
		events := []string{
			"event: session\ndata: {\"sessionId\":\"stream-session\"}\n\n",
			"event: text\ndata: {\"text\":\"Hello\"}\n\nevent: text\nda",
			"ta: {\"text\":\", world!\"}\n\n",
			"event: result\ndata: {\"sessionId\":\"stream-session\",\"usage\":{\"inputTokens\":5,\"outputTokens\":3,\"totalTokens\":8}}\n\n",
			"event: done\ndata: {}\n\n",
		}
		for _, ev := range events {
			_, _ = io.WriteString(w, ev)
			flusher.Flush()
		}
	}))
	defer server.Close()

	ctx := context.Background()
	c := newTestClient(t, server.URL)
	stream, err := c.StreamText(ctx, TextRequest{
		Prompt:    "Say hello",
		System:    "system prompt",
		SessionID: "existing-session",
	})
	require.NoError(t, err)
	defer stream.Close()

	var chunks []string
	for {
		chunk, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"Hello", ", world!"}, chunks)

	sessionID, err := stream.SessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stream-session", sessionID)

	usage, err := stream.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, Usage{InputTokens: 5, OutputTokens: 3, TotalTokens: 8}, usage)

	text, err := stream.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", text)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "Say hello", gotBody["prompt"])
	assert.Equal(t, "system prompt", gotBody["system"])
	assert.Equal(t, "existing-session", gotBody["sessionId"])
	assert.Equal(t, "sonnet", gotBody["model"])
}

func TestStreamTextGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{
			"error": "Unauthorized",
			"code":  "UNAUTHORIZED",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.StreamText(context.Background(), TextRequest{Prompt: "test"})
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", ErrorCode(err))
}

func TestStreamTextHTTPErrorUnparseableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service melted", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.StreamText(context.Background(), TextRequest{Prompt: "test"})
	require.Error(t, err)
	assert.Equal(t, CodeHTTPError, ErrorCode(err))
	assert.Contains(t, err.Error(), "503")
}

func TestClientRateLimiterApplied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"text":      "ok",
			"usage":     Usage{TotalTokens: 1},
			"sessionId": "s",
		})
	}))
	defer server.Close()

	cfg := config.NewConfig()
	config.ApplyOptions(cfg,
		config.SetBaseURL(server.URL),
		config.SetAuthKey("test-key"),
		config.SetRequestsPerSecond(100),
	)
	c, err := NewClient(cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.GenerateText(context.Background(), TextRequest{Prompt: "test"})
		require.NoError(t, err)
	}
}
