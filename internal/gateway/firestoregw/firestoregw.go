// Package firestoregw is the Cloud Firestore backend. Live snapshots come
// from Firestore query listeners; the SDK handles reconnects and retries.
package firestoregw

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nhle/kanban/internal/gateway"
)

// Options selects the Firebase project and credentials. CredentialsJSON
// takes precedence over CredentialsFile; with neither, application default
// credentials (or the emulator) are used.
type Options struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON []byte
}

// Gateway talks to one Firestore database.
type Gateway struct {
	client *firestore.Client
	logger log.FieldLogger
}

// Open initializes a Firebase app and returns a gateway over its Firestore.
func Open(ctx context.Context, opts Options, logger log.FieldLogger) (*Gateway, error) {
	var clientOpts []option.ClientOption
	switch {
	case len(opts.CredentialsJSON) > 0:
		clientOpts = append(clientOpts, option.WithCredentialsJSON(opts.CredentialsJSON))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	var cfg *firebase.Config
	if opts.ProjectID != "" {
		cfg = &firebase.Config{ProjectID: opts.ProjectID}
	}
	app, err := firebase.NewApp(ctx, cfg, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting firestore client: %w", err)
	}
	return New(client, logger), nil
}

// New wraps an existing Firestore client.
func New(client *firestore.Client, logger log.FieldLogger) *Gateway {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Gateway{client: client, logger: logger.WithField("backend", "firestore")}
}

// Close releases the client.
func (g *Gateway) Close() error {
	return g.client.Close()
}

type subscription struct {
	it     *firestore.QuerySnapshotIterator
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.it.Stop()
		s.cancel()
		<-s.done
	})
}

// Subscribe attaches a query listener ordered by orderField, then document
// id. Documents without orderField are not matched by Firestore's ordered
// queries and therefore never appear in snapshots.
func (g *Gateway) Subscribe(ctx context.Context, collection, orderField string,
	onSnapshot func([]gateway.Document), onError func(error)) (gateway.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	q := g.client.Collection(collection).
		OrderBy(orderField, firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
	it := q.Snapshots(ctx)

	s := &subscription{it: it, cancel: cancel, done: make(chan struct{})}
	logger := g.logger.WithField("collection", collection)
	go func() {
		defer close(s.done)
		for {
			snap, err := it.Next()
			if err != nil {
				if stopped(ctx, err) {
					return
				}
				// The listener is dead after an error; report and stop.
				logger.WithError(err).Error("snapshot listener failed")
				onError(fmt.Errorf("listening to %s: %w", collection, err))
				return
			}
			refs, err := snap.Documents.GetAll()
			if err != nil {
				logger.WithError(err).Warn("reading snapshot documents failed")
				onError(fmt.Errorf("reading %s snapshot: %w", collection, err))
				continue
			}
			onSnapshot(toDocuments(refs))
		}
	}()
	return s, nil
}

// Create adds a document with a generated id.
func (g *Gateway) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ref, _, err := g.client.Collection(collection).Add(ctx, fields)
	if err != nil {
		return "", &gateway.WriteError{Op: "create", Collection: collection, Err: mapError(err)}
	}
	return ref.ID, nil
}

// Update merges fields into an existing document. Each key is a single
// top-level field, never a dotted path.
func (g *Gateway) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	if _, err := g.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return &gateway.WriteError{Op: "update", Collection: collection, ID: id, Err: mapError(err)}
	}
	return nil
}

// Delete removes an existing document.
func (g *Gateway) Delete(ctx context.Context, collection, id string) error {
	if _, err := g.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return &gateway.WriteError{Op: "delete", Collection: collection, ID: id, Err: mapError(err)}
	}
	return nil
}

// GetAll reads every document in the collection once, ordered by id.
func (g *Gateway) GetAll(ctx context.Context, collection string) ([]gateway.Document, error) {
	refs, err := g.client.Collection(collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, mapError(err))
	}
	docs := toDocuments(refs)
	gateway.SortDocuments(docs, "")
	return docs, nil
}

func toDocuments(refs []*firestore.DocumentSnapshot) []gateway.Document {
	docs := make([]gateway.Document, 0, len(refs))
	for _, r := range refs {
		docs = append(docs, gateway.Document{ID: r.Ref.ID, Data: r.Data()})
	}
	return docs
}

// mapError turns Firestore's NotFound status into gateway.ErrNotFound.
func mapError(err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %v", gateway.ErrNotFound, err)
	}
	return err
}

func stopped(ctx context.Context, err error) bool {
	if errors.Is(err, iterator.Done) || ctx.Err() != nil {
		return true
	}
	return status.Code(err) == codes.Canceled
}
