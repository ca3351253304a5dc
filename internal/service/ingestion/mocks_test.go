package ingestion

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/transaction-monitor/internal/domain/alert"
	"github.com/davidleathers/transaction-monitor/internal/domain/transaction"
	"github.com/davidleathers/transaction-monitor/internal/infrastructure/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error {
	return errors.New("broker unavailable")
}

type channelNotifier struct {
	sent chan *alert.Alert
}

func (n *channelNotifier) NotifyAlert(_ context.Context, a *alert.Alert, _ *transaction.Transaction) error {
	n.sent <- a
	return nil
}

type fakeResolver map[string]string

func (f fakeResolver) Country(ip string) (string, error) {
	c, ok := f[ip]
	if !ok {
		return "", errors.New("not found")
	}
	return c, nil
}

type recordingHistory struct {
	mu  sync.Mutex
	ids []string
}

func (h *recordingHistory) Record(_ context.Context, txn *transaction.Transaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, txn.TransactionID)
	return nil
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordAlert(priority alert.Priority) {
	m.Called(priority)
}

func (m *mockMetrics) RecordIngestError(source string) {
	m.Called(source)
}

type countingListener struct {
	mu    sync.Mutex
	calls int
}

func (l *countingListener) InvalidateStats(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
}
