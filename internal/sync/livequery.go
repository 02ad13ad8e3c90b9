// Package sync bridges gateway subscriptions into the bubbletea event loop.
package sync

import (
	"context"
	"fmt"
	gosync "sync"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/gateway"
	"github.com/nhle/kanban/internal/model"
)

// SnapshotMsg is a tea.Msg carrying a full, ordered task snapshot.
type SnapshotMsg struct {
	Tasks []model.Task
}

// SubscriptionErrorMsg is a tea.Msg sent when the live feed reports an error.
// The board keeps its last snapshot.
type SubscriptionErrorMsg struct {
	Err error
}

// resultBuffer is the number of undelivered results kept before the oldest
// snapshot is discarded.
const resultBuffer = 16

// LiveQuery owns one subscription to an ordered collection. Start acquires
// it and Stop releases it; a stopped query cannot be restarted.
type LiveQuery struct {
	gw         gateway.Gateway
	collection string
	orderField string
	logger     log.FieldLogger

	resultCh chan tea.Msg
	cancel   context.CancelFunc
	sub      gateway.Subscription
	mu       gosync.Mutex
	running  bool
	stopped  bool
}

// NewLiveQuery creates a handle for collection ordered by orderField.
func NewLiveQuery(gw gateway.Gateway, collection, orderField string, logger log.FieldLogger) *LiveQuery {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LiveQuery{
		gw:         gw,
		collection: collection,
		orderField: orderField,
		logger:     logger.WithFields(log.Fields{"component": "livequery", "collection": collection}),
		resultCh:   make(chan tea.Msg, resultBuffer),
	}
}

// Start returns a tea.Cmd that opens the subscription and waits for its
// first result. Calling Start on a running or stopped query returns nil.
func (q *LiveQuery) Start() tea.Cmd {
	q.mu.Lock()
	if q.running || q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.running = true
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.mu.Unlock()

	sub, err := q.gw.Subscribe(ctx, q.collection, q.orderField, q.onSnapshot, q.onError)
	if err != nil {
		q.logger.WithError(err).Error("subscribe failed")
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
		q.send(SubscriptionErrorMsg{Err: fmt.Errorf("subscribing to %s: %w", q.collection, err)})
		return q.waitForResult()
	}

	q.mu.Lock()
	q.sub = sub
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		sub.Unsubscribe()
	}

	q.logger.Info("live query started")
	return q.waitForResult()
}

// Stop releases the subscription. It is safe to call more than once.
func (q *LiveQuery) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.running = false
	sub, cancel := q.sub, q.cancel
	q.sub = nil
	q.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	q.logger.Info("live query stopped")
}

// Running reports whether the query holds a live subscription.
func (q *LiveQuery) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// WaitForNextSnapshot returns a tea.Cmd that waits for the next result. Call
// it after handling each SnapshotMsg or SubscriptionErrorMsg.
func (q *LiveQuery) WaitForNextSnapshot() tea.Cmd {
	return q.waitForResult()
}

func (q *LiveQuery) onSnapshot(docs []gateway.Document) {
	if q.isStopped() {
		return
	}
	tasks := make([]model.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, model.TaskFromDocument(d.ID, d.Data))
	}
	q.logger.WithField("tasks", len(tasks)).Debug("snapshot received")
	q.send(SnapshotMsg{Tasks: tasks})
}

func (q *LiveQuery) onError(err error) {
	if q.isStopped() {
		return
	}
	q.logger.WithError(err).Warn("subscription error")
	q.send(SubscriptionErrorMsg{Err: err})
}

func (q *LiveQuery) isStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// send never blocks the backend. Snapshots are full replacements, so when
// the buffer is full the oldest queued result is discarded.
func (q *LiveQuery) send(msg tea.Msg) {
	for {
		select {
		case q.resultCh <- msg:
			return
		default:
		}
		select {
		case <-q.resultCh:
			q.logger.Debug("result buffer full, dropped oldest")
		default:
		}
	}
}

func (q *LiveQuery) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-q.resultCh
	}
}
