package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/pkg/config"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

func testClient(baseURL string) *Client {
	return NewClient(config.AssistantConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	}, zap.NewNop())
}

func TestStreamChatCompletionMissingCredential(t *testing.T) {
	client := NewClient(config.AssistantConfig{BaseURL: "http://localhost", Model: "m"}, zap.NewNop())

	_, err := client.StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestStreamChatCompletionSendsStreamingRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "gpt-4o-mini", payload["model"])
		assert.Equal(t, true, payload["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"hi"}}]}` + "\n" + "data: [DONE]\n"))
	}))
	defer srv.Close()

	client := testClient(srv.URL)

	body, err := client.StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hello"}})
	require.NoError(t, err)
	defer body.Close()

	collected, err := NewTokenStream(body).Collect()
	require.NoError(t, err)
	assert.Equal(t, "hi", collected)
}

func TestStreamChatCompletionRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRateLimited.Code, appErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Status)
}

func TestStreamChatCompletionPaymentRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "balance exhausted", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPaymentRequired.Code, appErr.Code)
	assert.Equal(t, http.StatusPaymentRequired, appErr.Status)
}

func TestStreamChatCompletionUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal upstream error", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "502")
}

func TestStreamChatCompletionSuccessReturnsRawBody(t *testing.T) {
	raw := ": keep-alive\n" + `data: {"choices":[{"delta":{"content":"verbatim"}}]}` + "\ndata: [DONE]\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(raw))
	}))
	defer srv.Close()

	body, err := testClient(srv.URL).StreamChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, raw, string(got))
}
