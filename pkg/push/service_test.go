package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/subscription-radar/pkg/metrics"
	"github.com/FACorreiaa/subscription-radar/pkg/notify"
)

const testToken = "ExponentPushToken[abcdefghijklmnop]"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsValidToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{testToken, true},
		{"ExpoPushToken[abcdefghijklmnop]", true},
		{"ExponentPushToken[unterminated", false},
		{"fcm:abcdefghijklmnopqrstuvwxyz", false},
		{"short", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidToken(tt.token))
		})
	}
}

func TestSend(t *testing.T) {
	var got []Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"ticket-1"}]}`))
	}))
	defer srv.Close()

	m := metrics.New()
	svc := NewService(discardLogger(), WithEndpoint(srv.URL), WithMetrics(m))

	err := svc.Send(context.Background(), &Message{
		To:    testToken,
		Title: "Subscription due soon",
		Body:  "Your Netflix subscription is due in 3 days",
		Data:  map[string]any{"subscriptionId": "1"},
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "default", got[0].Sound)
	assert.Equal(t, "1", got[0].Data["subscriptionId"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PushSent.WithLabelValues("ok")))
}

func TestSendRejectsInvalidTokenWithoutCalling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	svc := NewService(discardLogger(), WithEndpoint(srv.URL))
	assert.ErrorIs(t, svc.Send(context.Background(), &Message{To: "nope"}), ErrInvalidToken)
	assert.ErrorIs(t, svc.Send(context.Background(), &Message{}), ErrInvalidToken)
	assert.Zero(t, calls.Load())
}

func TestSendTicketError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}]}`))
	}))
	defer srv.Close()

	svc := NewService(discardLogger(), WithEndpoint(srv.URL))
	err := svc.Send(context.Background(), &Message{To: testToken, Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTicketRejected)
	assert.Contains(t, err.Error(), "DeviceNotRegistered")
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := metrics.New()
	svc := NewService(discardLogger(),
		WithEndpoint(srv.URL),
		WithMetrics(m),
		WithCircuitBreaker(2, time.Hour),
		WithRateLimit(1000, 10),
	)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		err := svc.Send(ctx, &Message{To: testToken, Body: "hi"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	err := svc.Send(ctx, &Message{To: testToken, Body: "hi"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load(), "an open circuit does not reach the endpoint")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PushSent.WithLabelValues("circuit_open")))
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer srv.Close()

	svc := NewService(discardLogger(), WithEndpoint(srv.URL), WithRateLimit(0.001, 1))
	require.NoError(t, svc.Send(context.Background(), &Message{To: testToken, Body: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, svc.Send(ctx, &Message{To: testToken, Body: "second"}))
}

func TestForwarder(t *testing.T) {
	received := make(chan Message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msgs []Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msgs))
		received <- msgs[0]
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	defer srv.Close()

	svc := NewService(discardLogger(), WithEndpoint(srv.URL))
	forward := svc.Forwarder(testToken)
	forward(notify.Notification{
		Handle:  "h1",
		Payload: notify.Payload{Title: "Subscription due soon", Body: "Netflix", Data: map[string]any{"type": "subscription_reminder"}},
	})

	msg := <-received
	assert.Equal(t, "Subscription due soon", msg.Title)
	assert.Equal(t, "high", msg.Priority)
	assert.Equal(t, "subscription_reminder", msg.Data["type"])
}
