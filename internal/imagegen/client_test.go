package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tower_bot/internal/config"
	"tower_bot/internal/logging"
	"tower_bot/internal/transport"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.OpenAIConfig{
		URL:  server.URL + "/images/generations",
		Key:  "k",
		Size: "1024x1024",
	}
	httpClient := transport.New(transport.Options{Timeout: 2 * time.Second, BaseDelay: time.Millisecond})
	return NewClient(cfg, httpClient, logging.Discard())
}

func TestGenerateReturnsFirstURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("api-key"))
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a dusty attic in a surreal style", req.Prompt)
		assert.Equal(t, 1, req.N)
		assert.Equal(t, "1024x1024", req.Size)
		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.test/1.png"},{"url":"https://img.test/2.png"}]}`))
	})

	url, err := c.Generate(context.Background(), "a dusty attic in a surreal style")
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/1.png", url)
}

func TestGenerateWithoutData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestGenerateHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"content_policy_violation"}}`))
	})

	_, err := c.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, transport.StatusCode(err))
	assert.Contains(t, err.Error(), "content_policy_violation")
}
