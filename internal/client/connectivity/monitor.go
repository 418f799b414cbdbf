package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Monitor is a probe-based Gate: it periodically issues a HEAD request
// against the service health endpoint and flips the gate on reachability
// changes. Useful where no platform reachability signal exists (CLI, tests
// against a live server).
type Monitor struct {
	*ManualGate

	httpClient *http.Client
	logger     *slog.Logger
	probeURL   string
	interval   time.Duration
}

// NewMonitor creates a monitor probing probeURL every interval. The gate
// starts offline until the first successful probe.
func NewMonitor(probeURL string, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		ManualGate: NewManualGate(false),
		probeURL:   probeURL,
		interval:   interval,
		logger:     logger,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Run probes until ctx is cancelled. Call in its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// ProbeOnce runs a single reachability check and reports the resulting
// state, for one-shot commands that cannot wait for the ticker.
func (m *Monitor) ProbeOnce(ctx context.Context) bool {
	m.probe(ctx)
	return m.Online()
}

func (m *Monitor) probe(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		m.logger.Error("failed to build probe request", "error", err)
		return
	}

	resp, err := m.httpClient.Do(req)
	online := err == nil && resp.StatusCode < 500
	if resp != nil {
		_ = resp.Body.Close()
	}

	if online != m.Online() {
		m.logger.Info("connectivity changed", "online", online)
	}
	m.SetOnline(online)
}
