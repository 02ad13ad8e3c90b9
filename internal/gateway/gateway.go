// Package gateway defines the remote document collection the board reads from
// and writes to. Backends live in subpackages (memory, redisgw, firestoregw)
// and in internal/store for the local sqlite file.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when a write targets a document that does not exist.
var ErrNotFound = errors.New("document not found")

// Document is one stored record.
type Document struct {
	ID   string
	Data map[string]any
}

// Subscription is a live feed handle. Unsubscribe must be safe to call more
// than once.
type Subscription interface {
	Unsubscribe()
}

// Gateway is a collection-oriented document store with live queries.
//
// Subscribe delivers the full ordered collection on every change, starting
// with the current contents. Callbacks run on a backend goroutine; callers
// must hand results over to their own event loop.
type Gateway interface {
	Subscribe(ctx context.Context, collection, orderField string,
		onSnapshot func([]Document), onError func(error)) (Subscription, error)
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	GetAll(ctx context.Context, collection string) ([]Document, error)
}

// WriteError describes a failed write.
type WriteError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsNotFound reports whether err (or any error in its chain) is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsWriteError reports whether err (or any error in its chain) is a WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// SortDocuments orders docs by orderField ascending, then by id. Numbers
// compare numerically, strings lexically, and documents missing the field
// sort first.
func SortDocuments(docs []Document, orderField string) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(docs[i].Data[orderField], docs[j].Data[orderField])
		if c != 0 {
			return c < 0
		}
		return docs[i].ID < docs[j].ID
	})
}

// CloneData copies a document body one level deep.
func CloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	an, aNum := toFloat(a)
	bn, bNum := toFloat(b)
	switch {
	case aNum && bNum:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
