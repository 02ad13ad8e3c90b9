// Package memory is an in-process gateway backend. Snapshots are delivered
// synchronously from the writing goroutine, which makes it the backend of
// choice for tests and demos. Deliveries are serialised, so a callback must
// not write to the gateway it is subscribed to.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/gateway"
)

type subscriber struct {
	collection string
	orderField string
	onSnapshot func([]gateway.Document)
	onError    func(error)
}

// Gateway keeps every collection in memory.
type Gateway struct {
	// notifyMu orders deliveries. It is taken before mu.
	notifyMu sync.Mutex

	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[int]*subscriber
	nextSub     int

	failWrites error
	logger     log.FieldLogger
}

// New returns an empty in-memory gateway.
func New(logger log.FieldLogger) *Gateway {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gateway{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[int]*subscriber),
		logger:      logger.WithField("backend", "memory"),
	}
}

// FailWrites makes subsequent writes fail with err. Pass nil to recover.
func (g *Gateway) FailWrites(err error) {
	g.mu.Lock()
	g.failWrites = err
	g.mu.Unlock()
}

// BreakFeeds reports err to every live subscriber.
func (g *Gateway) BreakFeeds(err error) {
	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()

	g.mu.Lock()
	var fns []func(error)
	for _, s := range g.subs {
		if s.onError != nil {
			fns = append(fns, s.onError)
		}
	}
	g.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}

// Seed stores a document under a caller-chosen id without validation.
func (g *Gateway) Seed(collection, id string, fields map[string]any) {
	g.mu.Lock()
	g.coll(collection)[id] = gateway.CloneData(fields)
	g.mu.Unlock()
	g.notify(collection)
}

type subscription struct {
	g    *Gateway
	id   int
	done chan struct{}
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.g.mu.Lock()
		delete(s.g.subs, s.id)
		s.g.mu.Unlock()
		close(s.done)
	})
}

// Subscribe registers a listener and delivers the current contents at once.
func (g *Gateway) Subscribe(ctx context.Context, collection, orderField string,
	onSnapshot func([]gateway.Document), onError func(error)) (gateway.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.notifyMu.Lock()
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	sub := &subscriber{collection: collection, orderField: orderField, onSnapshot: onSnapshot, onError: onError}
	g.subs[id] = sub
	docs := g.snapshotLocked(collection, orderField)
	g.mu.Unlock()

	onSnapshot(docs)
	g.notifyMu.Unlock()

	s := &subscription{g: g, id: id, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-s.done:
		}
	}()
	return s, nil
}

// Create stores a new document under a random id.
func (g *Gateway) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	g.mu.Lock()
	if err := g.writeErrLocked(ctx); err != nil {
		g.mu.Unlock()
		return "", &gateway.WriteError{Op: "create", Collection: collection, Err: err}
	}
	id := uuid.NewString()
	g.coll(collection)[id] = gateway.CloneData(fields)
	g.mu.Unlock()

	g.logger.WithFields(log.Fields{"collection": collection, "id": id}).Debug("document created")
	g.notify(collection)
	return id, nil
}

// Update merges fields into an existing document.
func (g *Gateway) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	g.mu.Lock()
	if err := g.writeErrLocked(ctx); err != nil {
		g.mu.Unlock()
		return &gateway.WriteError{Op: "update", Collection: collection, ID: id, Err: err}
	}
	doc, ok := g.coll(collection)[id]
	if !ok {
		g.mu.Unlock()
		return &gateway.WriteError{Op: "update", Collection: collection, ID: id, Err: gateway.ErrNotFound}
	}
	for k, v := range fields {
		doc[k] = v
	}
	g.mu.Unlock()

	g.notify(collection)
	return nil
}

// Delete removes a document.
func (g *Gateway) Delete(ctx context.Context, collection, id string) error {
	g.mu.Lock()
	if err := g.writeErrLocked(ctx); err != nil {
		g.mu.Unlock()
		return &gateway.WriteError{Op: "delete", Collection: collection, ID: id, Err: err}
	}
	c := g.coll(collection)
	if _, ok := c[id]; !ok {
		g.mu.Unlock()
		return &gateway.WriteError{Op: "delete", Collection: collection, ID: id, Err: gateway.ErrNotFound}
	}
	delete(c, id)
	g.mu.Unlock()

	g.notify(collection)
	return nil
}

// GetAll returns every document in the collection, ordered by id.
func (g *Gateway) GetAll(ctx context.Context, collection string) ([]gateway.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked(collection, ""), nil
}

func (g *Gateway) coll(name string) map[string]map[string]any {
	c, ok := g.collections[name]
	if !ok {
		c = make(map[string]map[string]any)
		g.collections[name] = c
	}
	return c
}

func (g *Gateway) writeErrLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.failWrites
}

func (g *Gateway) snapshotLocked(collection, orderField string) []gateway.Document {
	c := g.collections[collection]
	docs := make([]gateway.Document, 0, len(c))
	for id, data := range c {
		docs = append(docs, gateway.Document{ID: id, Data: gateway.CloneData(data)})
	}
	gateway.SortDocuments(docs, orderField)
	return docs
}

// notify pushes a fresh snapshot to every subscriber of collection. The
// snapshot is taken and delivered under notifyMu, so a subscriber never sees
// an older snapshot after a newer one.
func (g *Gateway) notify(collection string) {
	type delivery struct {
		fn   func([]gateway.Document)
		docs []gateway.Document
	}

	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()

	g.mu.Lock()
	var out []delivery
	for _, s := range g.subs {
		if s.collection != collection {
			continue
		}
		out = append(out, delivery{fn: s.onSnapshot, docs: g.snapshotLocked(collection, s.orderField)})
	}
	g.mu.Unlock()

	for _, d := range out {
		d.fn(d.docs)
	}
}
