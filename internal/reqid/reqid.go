// Package reqid carries a build correlation id through a context so that
// start and finish events of one assembly can be matched by subscribers.
package reqid

import (
	"context"
	"math/rand/v2"
)

// key is the context key for the id.
type key struct{}

// NewContext returns a copy of parent with a new random id stored.
// It also returns the generated id.
func NewContext(parent context.Context) (context.Context, int64) {
	id := rand.Int64()
	return context.WithValue(parent, key{}, id), id
}

// Ensure returns ctx unchanged when it already carries an id, and otherwise
// behaves like NewContext.
func Ensure(ctx context.Context) (context.Context, int64) {
	if id, ok := FromContext(ctx); ok {
		return ctx, id
	}
	return NewContext(ctx)
}

// FromContext extracts the id from ctx.
// It returns the id and whether it was present.
func FromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(key{})
	id, ok := v.(int64)
	return id, ok
}
