package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPConnectorPostsUpdate(t *testing.T) {
	var received Update

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	connector := NewHTTPConnector(server.URL, "secret")

	result, err := connector.ApplyUpdate(context.Background(), Update{
		TaskID:     "task-1",
		CustomerID: "cust-1",
		Fields:     map[string]any{"renewal_stage": "committed"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "task-1", received.TaskID)
	assert.Equal(t, "committed", received.Fields["renewal_stage"])
}

func TestHTTPConnectorRetryableStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "server error", status: http.StatusInternalServerError, retryable: true},
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
		{name: "not found", status: http.StatusNotFound, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			connector := NewHTTPConnector(server.URL, "")

			result, err := connector.ApplyUpdate(context.Background(), Update{TaskID: "task-1"})
			require.NoError(t, err)

			assert.False(t, result.Success)
			assert.Equal(t, tt.retryable, result.Retryable)
		})
	}
}

func TestHTTPConnectorTransportErrorIsRetryable(t *testing.T) {
	connector := NewHTTPConnector("http://127.0.0.1:1", "")

	result, err := connector.ApplyUpdate(context.Background(), Update{TaskID: "task-1"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.Retryable)
}
