package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStatus struct{ connected bool }

func (s stubStatus) IsConnected() bool { return s.connected }

type stubWebhooks struct{ count int }

func (s stubWebhooks) CachedCount() int { return s.count }

func TestHealthEndpoints(t *testing.T) {
	server := NewServer(0, stubStatus{connected: true}, stubWebhooks{count: 3})

	tests := []struct {
		path string
		body string
	}{
		{"/", "Bot is running!"},
		{"/health", "Health Check: OK"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		server.httpServer.Handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Equal(t, tt.body, rec.Body.String(), tt.path)
	}
}

func TestStatusEndpoint(t *testing.T) {
	server := NewServer(0, stubStatus{connected: true}, stubWebhooks{count: 3})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["connected"])
	assert.Equal(t, float64(3), status["cached_webhooks"])
}
