package servicekey

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"govdash/pkg/domain"
	"govdash/pkg/requestcontext"
)

// Header carries the shared secret of internal callers (schedulers, other services).
const Header = "X-Service-Key"

// Identify places the service identity in the context when the request presents
// a key matching keyHash. An empty hash disables service identity entirely.
func Identify(keyHash []byte, serviceID domain.ActorID, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			if len(keyHash) == 0 || bcrypt.CompareHashAndPassword(keyHash, []byte(key)) != nil {
				logger.WarnContext(ctx, "service key mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"invalid service key"}`))
				return
			}

			actor := domain.Actor{ID: serviceID, Role: domain.RoleService}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
