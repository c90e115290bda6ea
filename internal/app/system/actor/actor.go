// Package actor carries the identity of whoever performs a mutation.
//
// Authentication happens upstream (gateway or session service). This
// package only reads the identity it forwards and passes it, opaque, to the
// audit log.
package actor

import (
	"context"
	"net/http"
	"strings"
)

const (
	HeaderID   = "X-Actor-ID"
	HeaderName = "X-Actor-Name"
)

// Actor identifies the caller of a mutation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// System is used for mutations with no forwarded identity.
var System = Actor{ID: "system", Name: "system"}

type ctxKey struct{}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// From returns the actor stored in ctx, or System.
func From(ctx context.Context) Actor {
	if a, ok := ctx.Value(ctxKey{}).(Actor); ok {
		return a
	}
	return System
}

// FromRequest is From(r.Context()).
func FromRequest(r *http.Request) Actor {
	return From(r.Context())
}

// Middleware loads the forwarded identity headers into the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderID))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		a := Actor{ID: id, Name: strings.TrimSpace(r.Header.Get(HeaderName))}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
	})
}
