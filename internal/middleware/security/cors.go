package security

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lists the origins allowed to call the API from a browser. A
// single "*" allows any origin.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// DefaultCORSConfig allows any origin, matching a public token-authenticated API.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         600,
	}
}

// CORSMiddleware answers preflight requests and decorates cross-origin
// responses. Credentials are bearer tokens, so cookies are never allowed.
type CORSMiddleware struct {
	config  CORSConfig
	anyOrig bool
	origins map[string]struct{}
	methods string
	headers string
	maxAge  string
}

func NewCORSMiddleware(config CORSConfig) *CORSMiddleware {
	defaults := DefaultCORSConfig()
	if len(config.AllowedMethods) == 0 {
		config.AllowedMethods = defaults.AllowedMethods
	}
	if len(config.AllowedHeaders) == 0 {
		config.AllowedHeaders = defaults.AllowedHeaders
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}

	c := &CORSMiddleware{
		config:  config,
		origins: make(map[string]struct{}, len(config.AllowedOrigins)),
		methods: strings.Join(config.AllowedMethods, ", "),
		headers: strings.Join(config.AllowedHeaders, ", "),
		maxAge:  strconv.Itoa(config.MaxAge),
	}
	for _, o := range config.AllowedOrigins {
		if o == "*" {
			c.anyOrig = true
			continue
		}
		c.origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	return c
}

func (c *CORSMiddleware) allowed(origin string) bool {
	if c.anyOrig {
		return true
	}
	_, ok := c.origins[origin]
	return ok
}

func (c *CORSMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Add("Vary", "Origin")
		if c.allowed(origin) {
			if c.anyOrig {
				headers.Set("Access-Control-Allow-Origin", "*")
			} else {
				headers.Set("Access-Control-Allow-Origin", origin)
			}
			headers.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !c.allowed(origin) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			headers.Set("Access-Control-Allow-Methods", c.methods)
			headers.Set("Access-Control-Allow-Headers", c.headers)
			headers.Set("Access-Control-Max-Age", c.maxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
