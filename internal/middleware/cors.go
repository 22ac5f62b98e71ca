package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures Cross-Origin Resource Sharing (CORS) policies.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// corsPolicy holds the precomputed header values so per-request work is
// just a map lookup.
type corsPolicy struct {
	allowAll bool
	origins  map[string]struct{}

	methods          string
	headers          string
	expose           string
	maxAge           string
	allowCredentials bool
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins:          make(map[string]struct{}),
		methods:          strings.Join(cfg.AllowedMethods, ", "),
		headers:          strings.Join(cfg.AllowedHeaders, ", "),
		expose:           strings.Join(cfg.ExposeHeaders, ", "),
		allowCredentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			p.allowAll = true
			break
		}
		p.origins[origin] = struct{}{}
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if p.allowAll {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func (p *corsPolicy) applyHeaders(w http.ResponseWriter, origin string) {
	if p.allowAll {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		// Credentials cannot be combined with a wildcard origin.
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
		if p.allowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
	}
	if p.expose != "" {
		w.Header().Set("Access-Control-Expose-Headers", p.expose)
	}
}

func (p *corsPolicy) applyPreflightHeaders(w http.ResponseWriter) {
	if p.methods != "" {
		w.Header().Set("Access-Control-Allow-Methods", p.methods)
	}
	if p.headers != "" {
		w.Header().Set("Access-Control-Allow-Headers", p.headers)
	}
	if p.maxAge != "" {
		w.Header().Set("Access-Control-Max-Age", p.maxAge)
	}
}

// CORSMiddleware adds CORS headers and handles preflight requests.
func CORSMiddleware(cfg CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := policy.allows(origin)
			if allowed {
				policy.applyHeaders(w, origin)
			}

			if r.Method == http.MethodOptions {
				if allowed {
					policy.applyPreflightHeaders(w)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
