package testutil

import (
	"context"
	"net/http"

	"govdash/pkg/domain"
	"govdash/pkg/requestcontext"
)

// WithActor adds a resolved identity to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
