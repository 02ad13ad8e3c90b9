// Package redisgw stores each collection as a redis hash of JSON documents
// and announces writes on a per-collection pub/sub channel, so every board
// pointed at the same redis sees the same live collection.
package redisgw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/nhle/kanban/internal/gateway"
)

const (
	// reconnectDelay is the pause before resubscribing after the pub/sub
	// channel closes.
	reconnectDelay = time.Second

	// maxTxRetries bounds optimistic-lock retries for Update.
	maxTxRetries = 5
)

// Gateway is a redis-backed collection store.
type Gateway struct {
	rc     *redis.Client
	prefix string
	logger log.FieldLogger
}

// New wraps a redis client. Keys are namespaced under prefix.
func New(rc *redis.Client, prefix string, logger log.FieldLogger) *Gateway {
	if prefix == "" {
		prefix = "kanban"
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gateway{rc: rc, prefix: prefix, logger: logger.WithField("backend", "redis")}
}

// Close closes the underlying client.
func (g *Gateway) Close() error {
	return g.rc.Close()
}

func (g *Gateway) docsKey(collection string) string {
	return g.prefix + ":" + collection + ":docs"
}

func (g *Gateway) changesChannel(collection string) string {
	return g.prefix + ":" + collection + ":changes"
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe listens on the collection's change channel and delivers a full
// snapshot after every change. The channel subscription is confirmed before
// the first snapshot is read, so no write between the two is missed.
func (g *Gateway) Subscribe(ctx context.Context, collection, orderField string,
	onSnapshot func([]gateway.Document), onError func(error)) (gateway.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	ps := g.rc.Subscribe(ctx, g.changesChannel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		cancel()
		return nil, fmt.Errorf("subscribing to %s: %w", collection, err)
	}

	s := &subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		g.listen(ctx, ps, collection, orderField, onSnapshot, onError)
	}()
	return s, nil
}

func (g *Gateway) listen(ctx context.Context, ps *redis.PubSub, collection, orderField string,
	onSnapshot func([]gateway.Document), onError func(error)) {
	logger := g.logger.WithField("collection", collection)
	emit := func() {
		docs, err := g.fetch(ctx, collection, orderField)
		if err != nil {
			if ctx.Err() == nil {
				logger.WithError(err).Warn("snapshot fetch failed")
				onError(err)
			}
			return
		}
		onSnapshot(docs)
	}

	for {
		emit()
		ch := ps.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				ps.Close()
				return
			case _, ok := <-ch:
				if !ok {
					break recv
				}
				emit()
			}
		}
		ps.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		onError(fmt.Errorf("change feed for %s closed, reconnecting", collection))

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
		ps = g.rc.Subscribe(ctx, g.changesChannel(collection))
	}
}

func (g *Gateway) fetch(ctx context.Context, collection, orderField string) ([]gateway.Document, error) {
	raw, err := g.rc.HGetAll(ctx, g.docsKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	}
	docs := make([]gateway.Document, 0, len(raw))
	for id, body := range raw {
		data, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", collection, id, err)
		}
		docs = append(docs, gateway.Document{ID: id, Data: data})
	}
	gateway.SortDocuments(docs, orderField)
	return docs, nil
}

// Create stores a new document under a random id.
func (g *Gateway) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()
	body, err := sonic.Marshal(fields)
	if err != nil {
		return "", &gateway.WriteError{Op: "create", Collection: collection, Err: err}
	}
	if err := g.rc.HSet(ctx, g.docsKey(collection), id, body).Err(); err != nil {
		return "", &gateway.WriteError{Op: "create", Collection: collection, Err: err}
	}
	g.publish(ctx, collection, id)
	return id, nil
}

// Put writes a document under a caller-chosen id, replacing any existing one.
func (g *Gateway) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	body, err := sonic.Marshal(fields)
	if err != nil {
		return &gateway.WriteError{Op: "put", Collection: collection, ID: id, Err: err}
	}
	if err := g.rc.HSet(ctx, g.docsKey(collection), id, body).Err(); err != nil {
		return &gateway.WriteError{Op: "put", Collection: collection, ID: id, Err: err}
	}
	g.publish(ctx, collection, id)
	return nil
}

// Update merges fields into an existing document under WATCH, so concurrent
// writers to the same document never lose each other's fields.
func (g *Gateway) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	key := g.docsKey(collection)
	txf := func(tx *redis.Tx) error {
		body, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redis.Nil) {
			return gateway.ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err := decode(body)
		if err != nil {
			return err
		}
		for k, v := range fields {
			data[k] = v
		}
		merged, err := sonic.Marshal(data)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, merged)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = g.rc.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return &gateway.WriteError{Op: "update", Collection: collection, ID: id, Err: err}
	}
	g.publish(ctx, collection, id)
	return nil
}

// Delete removes a document.
func (g *Gateway) Delete(ctx context.Context, collection, id string) error {
	n, err := g.rc.HDel(ctx, g.docsKey(collection), id).Result()
	if err != nil {
		return &gateway.WriteError{Op: "delete", Collection: collection, ID: id, Err: err}
	}
	if n == 0 {
		return &gateway.WriteError{Op: "delete", Collection: collection, ID: id, Err: gateway.ErrNotFound}
	}
	g.publish(ctx, collection, id)
	return nil
}

// GetAll returns every document in the collection, ordered by id.
func (g *Gateway) GetAll(ctx context.Context, collection string) ([]gateway.Document, error) {
	return g.fetch(ctx, collection, "")
}

// publish announces a write. The write itself already succeeded, so a
// failed publish is only logged; subscribers catch up on the next change.
func (g *Gateway) publish(ctx context.Context, collection, id string) {
	if err := g.rc.Publish(ctx, g.changesChannel(collection), id).Err(); err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"collection": collection,
			"id":         id,
		}).Warn("publish change failed")
	}
}

func decode(body string) (map[string]any, error) {
	data := make(map[string]any)
	if err := sonic.UnmarshalString(body, &data); err != nil {
		return nil, err
	}
	return data, nil
}
