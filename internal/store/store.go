// Package store provides the durable per-user document store consumed by the
// chat core: point reads, merge patches, and change subscriptions keyed by a
// slash-separated document path.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Document is a loose document body or patch.
type Document map[string]any

// ArrayUnion marks a patch field as append-to-array rather than replace.
type ArrayUnion struct {
	Elems []any
}

// ServerTimestamp marks a patch value to be replaced with the store's clock at
// write time.
type ServerTimestamp struct{}

// Unsubscribe detaches a subscription registered with Subscribe.
type Unsubscribe func()

// Store is the document store surface. Set with merge=true patches the named
// fields into the existing document; merge=false replaces the document.
// Subscribe pushes the full current document on every durable change.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, patch Document, merge bool) error
	Subscribe(path string, onChange func(Document)) (Unsubscribe, error)
}

// applyPatch computes the next document from the current one. ServerTimestamp
// sentinels resolve to now; ArrayUnion values append to whatever array the
// target document already holds.
func applyPatch(current, patch Document, merge bool, now time.Time) Document {
	next := Document{}
	if merge && current != nil {
		next = cloneDocument(current)
	}

	for key, value := range patch {
		if union, ok := value.(ArrayUnion); ok {
			existing, _ := next[key].([]any)
			for _, elem := range union.Elems {
				existing = append(existing, resolveValue(elem, now))
			}
			next[key] = existing
			continue
		}
		next[key] = resolveValue(value, now)
	}

	return next
}

func resolveValue(value any, now time.Time) any {
	switch v := value.(type) {
	case ServerTimestamp:
		return now
	case Document:
		out := Document{}
		for key, elem := range v {
			out[key] = resolveValue(elem, now)
		}
		return out
	case map[string]any:
		out := map[string]any{}
		for key, elem := range v {
			out[key] = resolveValue(elem, now)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, elem := range v {
			out = append(out, resolveValue(elem, now))
		}
		return out
	default:
		return v
	}
}

func cloneDocument(doc Document) Document {
	out := Document{}
	for key, value := range doc {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case Document:
		return cloneDocument(v)
	case map[string]any:
		out := map[string]any{}
		for key, elem := range v {
			out[key] = cloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, 0, len(v))
		for _, elem := range v {
			out = append(out, cloneValue(elem))
		}
		return out
	default:
		return v
	}
}
