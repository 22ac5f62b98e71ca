package middleware

import (
	"net/http"

	"experiment-graphql/internal/loader"
	"experiment-graphql/internal/store"
)

// LoaderMiddleware attaches a fresh set of batched experiment loaders to each
// request context. Loaders are request-scoped so cached aggregates never leak
// across requests.
func LoaderMiddleware(s *store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loader.NewContext(r.Context(), loader.NewLoaders(s))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
