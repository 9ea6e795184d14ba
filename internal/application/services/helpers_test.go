package services

import (
	"sync"
	"testing"

	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/require"
)

// delivery records one message captured by the fake broadcaster. A fanout
// delivery has an empty channelID.
type delivery struct {
	channelID string
	event     string
	data      any
}

// fakeBroadcaster stands in for the hub so service tests do not need a
// running channel loop.
type fakeBroadcaster struct {
	mu     sync.Mutex
	fanout []delivery
	direct []delivery
}

func (f *fakeBroadcaster) BroadcastToObservers(event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fanout = append(f.fanout, delivery{event: event, data: data})
}

func (f *fakeBroadcaster) SendToChannel(channelID, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, delivery{channelID: channelID, event: event, data: data})
}

func (f *fakeBroadcaster) fanoutEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]string, len(f.fanout))
	for i, d := range f.fanout {
		events[i] = d.event
	}
	return events
}

func (f *fakeBroadcaster) directDeliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]delivery, len(f.direct))
	copy(out, f.direct)
	return out
}

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(logging.TestLoggerConfig())
	require.NoError(t, err)
	return logger
}
