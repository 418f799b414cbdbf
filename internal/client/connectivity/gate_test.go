package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualGate_Transitions(t *testing.T) {
	gate := NewManualGate(false)
	assert.False(t, gate.Online())

	var notifications []bool
	unsubscribe := gate.Subscribe(func(online bool) {
		notifications = append(notifications, online)
	})

	gate.SetOnline(true)
	gate.SetOnline(true) // no transition, no notification
	gate.SetOnline(false)

	assert.True(t, gate.Online() == false)
	assert.Equal(t, []bool{true, false}, notifications)

	unsubscribe()
	gate.SetOnline(true)
	assert.Equal(t, []bool{true, false}, notifications)
}

func TestManualGate_SubscriberMayCallBack(t *testing.T) {
	gate := NewManualGate(false)

	done := make(chan struct{})
	gate.Subscribe(func(online bool) {
		// Reading gate state from inside the callback must not deadlock.
		assert.True(t, gate.Online() == online)
		close(done)
	})

	gate.SetOnline(true)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not notified")
	}
}

func TestMonitor_ProbeOnce(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	logger := slog.New(slog.DiscardHandler)
	monitor := NewMonitor(server.URL, time.Minute, logger)
	assert.False(t, monitor.Online())

	assert.True(t, monitor.ProbeOnce(context.Background()))
	assert.True(t, monitor.Online())

	healthy = false
	assert.False(t, monitor.ProbeOnce(context.Background()))
}

func TestMonitor_ProbeOnce_Unreachable(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	monitor := NewMonitor("http://127.0.0.1:1/health", time.Minute, logger)

	assert.False(t, monitor.ProbeOnce(context.Background()))
}
