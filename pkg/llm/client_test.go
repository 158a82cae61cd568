package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"ahsan-gpt-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRESTClient(config.LLMConfig{APIKey: "secret-key", BaseURL: srv.URL}, srv.Client()), srv
}

func TestGenerate_RequestShape(t *testing.T) {
	var got generateRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "secret-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello back"}]}}]}`))
	})

	text, err := client.Generate(context.Background(), "gemini-2.5-flash", "user: hello")
	require.NoError(t, err)
	assert.Equal(t, "hello back", text)

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Equal(t, "user: hello", got.Contents[0].Parts[0].Text)
	assert.Equal(t, DefaultSafetySettings, got.SafetySettings)
}

func TestGenerate_MissingKeyMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := NewRESTClient(config.LLMConfig{BaseURL: srv.URL}, srv.Client())
	_, err := client.Generate(context.Background(), "gemini-2.5-flash", "x")

	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGenerate_NonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`overloaded`))
	})

	_, err := client.Generate(context.Background(), "gemini-2.5-flash", "x")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "overloaded", statusErr.Body)
}

func TestGenerate_MalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"no candidates": `{"candidates":[]}`,
		"no content":    `{"candidates":[{}]}`,
		"no parts":      `{"candidates":[{"content":{"parts":[]}}]}`,
		"no text":       `{"candidates":[{"content":{"parts":[{}]}}]}`,
		"not json":      `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := client.Generate(context.Background(), "m", "x")
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestGenerate_EmptyTextIsNotMalformed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":""}]}}]}`))
	})
	text, err := client.Generate(context.Background(), "m", "x")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGenerate_TransportErrorDoesNotLeakKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client := NewRESTClient(config.LLMConfig{APIKey: "secret-key", BaseURL: baseURL}, nil)
	_, err := client.Generate(context.Background(), "m", "x")

	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "secret-key"), err.Error())
}

func TestGenerate_ContextCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "m", "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_SelectsBackend(t *testing.T) {
	_, isREST := NewClient(config.LLMConfig{Backend: "rest"}).(*restClient)
	assert.True(t, isREST)
	_, isGenAI := NewClient(config.LLMConfig{Backend: "genai"}).(*genaiClient)
	assert.True(t, isGenAI)
}

func TestGenAIClient_MissingKey(t *testing.T) {
	_, err := NewGenAIClient(config.LLMConfig{}).Generate(context.Background(), "m", "x")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
