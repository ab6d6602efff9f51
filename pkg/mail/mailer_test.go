package mail

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDisabledWithoutKey(t *testing.T) {
	m, err := New(Config{From: "radar@example.com", To: "me@example.com"}, discardLogger())
	require.NoError(t, err)
	assert.False(t, m.Enabled())

	_, err = m.Send(context.Background(), Message{Subject: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDisabledWithoutRecipient(t *testing.T) {
	m, err := New(Config{APIKey: "re_test", From: "radar@example.com"}, discardLogger())
	require.NoError(t, err)
	assert.False(t, m.Enabled())
}

func TestSend(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email-123"}`))
	}))
	defer srv.Close()

	m, err := New(Config{
		APIKey:  "re_test",
		From:    "radar@example.com",
		To:      "me@example.com",
		BaseURL: srv.URL,
	}, discardLogger())
	require.NoError(t, err)
	require.True(t, m.Enabled())

	id, err := m.Send(context.Background(), Message{Subject: "Renewals this week", Text: "Netflix 45.90"})
	require.NoError(t, err)
	assert.Equal(t, "email-123", id)
	assert.Equal(t, "Renewals this week", body["subject"])
	assert.Equal(t, []any{"me@example.com"}, body["to"])
	assert.Equal(t, "Netflix 45.90", body["text"])
}

func TestSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"bad from"}`))
	}))
	defer srv.Close()

	m, err := New(Config{APIKey: "re_test", From: "x", To: "y", BaseURL: srv.URL}, discardLogger())
	require.NoError(t, err)

	_, err = m.Send(context.Background(), Message{Subject: "hi"})
	assert.Error(t, err)
}
