package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kartoza/stats-workbench/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[1].Content)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Hi there!\n"}}]}`))
	}))
	defer srv.Close()

	chat := NewChat(srv.URL, config.Chat{Model: "gpt-test", APIKey: "sk-test"})
	reply, err := chat.Complete(context.Background(), []ChatMessage{
		{Role: RoleSystem, Content: "You are a helpful assistant."},
		{Role: RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply)
}

func TestChatCompleteWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	reply, err := NewChat(srv.URL, config.Chat{Model: "local"}).Complete(context.Background(),
		[]ChatMessage{{Role: RoleUser, Content: "ping"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestChatCompleteNestedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewChat(srv.URL, config.Chat{}).Complete(context.Background(),
		[]ChatMessage{{Role: RoleUser, Content: "hi"}})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Incorrect API key provided", apiErr.Message)
}

func TestChatCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewChat(srv.URL, config.Chat{}).Complete(context.Background(),
		[]ChatMessage{{Role: RoleUser, Content: "hi"}})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestChatCompleteValidatesRoles(t *testing.T) {
	chat := NewChat("http://127.0.0.1:1", config.Chat{})

	_, err := chat.Complete(context.Background(), nil)
	assert.True(t, IsValidation(err))

	_, err = chat.Complete(context.Background(), []ChatMessage{{Role: "robot", Content: "beep"}})
	assert.True(t, IsValidation(err))
}

func TestChatCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	assert.True(t, NewChat(srv.URL, config.Chat{}).CheckStatus(context.Background()))
}
