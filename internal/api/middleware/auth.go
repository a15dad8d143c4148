package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sam-dm/deployment-manager/internal/apierrors"
	"github.com/sam-dm/deployment-manager/internal/models"
	"github.com/sam-dm/deployment-manager/internal/storage"
)

// ClientAuthenticator resolves an X-API-Key value to the Client it
// belongs to; satisfied by *service.Deployments.
type ClientAuthenticator interface {
	AuthenticateClient(ctx context.Context, apiKey string) (*models.Client, error)
}

// ClientAuthMiddleware gates agent-facing endpoints (check-in,
// update-result, artifact download) behind the X-API-Key bearer token
// every client is issued at registration.
func ClientAuthMiddleware(auth ClientAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				apierrors.WriteError(w, apierrors.AuthError("missing "+APIKeyHeader+" header").WithRequestID(GetRequestID(r.Context())))
				return
			}

			client, err := auth.AuthenticateClient(r.Context(), key)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					apierrors.WriteError(w, apierrors.AuthError("invalid API key").WithRequestID(GetRequestID(r.Context())))
					return
				}
				apierrors.WriteError(w, apierrors.InternalError("authenticating client").WithRequestID(GetRequestID(r.Context())))
				return
			}

			ctx := context.WithValue(r.Context(), ClientContextKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClient extracts the authenticated client from context.
func GetClient(ctx context.Context) (*models.Client, bool) {
	c, ok := ctx.Value(ClientContextKey).(*models.Client)
	return c, ok
}
