package store

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/gateway"
)

// fetchTimeout is the maximum time allowed for a single snapshot read.
const fetchTimeout = 10 * time.Second

// feed is one polling subscription. It fetches immediately, then on every
// tick and every local write, and emits only when the collection version
// has moved.
type feed struct {
	store      *SQLiteStore
	collection string
	orderField string
	onSnapshot func([]gateway.Document)
	onError    func(error)
	logger     log.FieldLogger

	triggerCh chan struct{}
	stopCh    chan struct{}
	once      gosync.Once
	lastSeen  int64
	emitted   bool
	failing   bool
}

// Subscribe starts a polling feed for collection. The first snapshot is
// delivered from the feed goroutine shortly after this returns.
func (s *SQLiteStore) Subscribe(ctx context.Context, collection, orderField string,
	onSnapshot func([]gateway.Document), onError func(error)) (gateway.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := &feed{
		store:      s,
		collection: collection,
		orderField: orderField,
		onSnapshot: onSnapshot,
		onError:    onError,
		logger:     s.logger.WithField("collection", collection),
		triggerCh:  make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}

	s.mu.Lock()
	s.feeds[f] = struct{}{}
	s.mu.Unlock()

	go f.run(ctx)
	return f, nil
}

// Unsubscribe stops the feed. Safe to call more than once.
func (f *feed) Unsubscribe() {
	f.once.Do(func() {
		close(f.stopCh)
		f.store.mu.Lock()
		delete(f.store.feeds, f)
		f.store.mu.Unlock()
	})
}

// trigger wakes every local feed on collection without blocking.
func (s *SQLiteStore) trigger(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for f := range s.feeds {
		if f.collection != collection {
			continue
		}
		select {
		case f.triggerCh <- struct{}{}:
		default:
			// A wake-up is already pending.
		}
	}
}

func (f *feed) run(ctx context.Context) {
	ticker := time.NewTicker(f.store.pollInterval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	f.poll()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ctx.Done():
			f.Unsubscribe()
			return
		case <-ticker.C:
			f.poll()
		case <-f.triggerCh:
			f.poll()
		}
	}
}

func (f *feed) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	version, err := f.store.CollectionVersion(ctx, f.collection)
	if err != nil {
		f.fail(err)
		return
	}
	if f.emitted && version == f.lastSeen {
		return
	}

	docs, err := f.store.query(ctx, f.collection, f.orderField)
	if err != nil {
		f.fail(err)
		return
	}

	select {
	case <-f.stopCh:
		return
	default:
	}

	if f.failing {
		f.logger.Info("feed recovered")
		f.failing = false
	}
	f.lastSeen = version
	f.emitted = true
	f.onSnapshot(docs)
}

// fail reports the first error of a failing streak; the feed keeps polling.
func (f *feed) fail(err error) {
	select {
	case <-f.stopCh:
		return
	default:
	}
	if f.failing {
		return
	}
	f.failing = true
	f.logger.WithError(err).Warn("snapshot poll failed")
	if f.onError != nil {
		f.onError(fmt.Errorf("polling %s: %w", f.collection, err))
	}
}
