package http

import (
	"context"
	"net/http"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/middleware/trace"
)

type principalKey struct{}

// withPrincipal stores the authenticated principal in ctx.
func withPrincipal(ctx context.Context, p core.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFrom returns the principal set by requireAuth.
func principalFrom(ctx context.Context) (core.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(core.Principal)
	return p, ok
}

// requireAuth resolves the bearer token against the live user record and
// rejects the request when that fails.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := s.storeContext(r)
		p, err := s.auth.Resolve(ctx, bearerToken(r))
		cancel()
		if err != nil {
			if kind := core.KindOf(err); kind == core.KindUnauthenticated || kind == core.KindForbidden {
				applog.NewStructuredLogger(applog.FromContext(r.Context())).
					AuthRejected(r.Context(), applog.OpResolve, core.PublicMessage(err), trace.GetClientIP(r.Context()))
			}
			writeError(w, r, applog.OpResolve, err)
			return
		}

		ctx = applog.With(withPrincipal(r.Context(), p), applog.FieldUserID, p.ID, applog.FieldRole, string(p.Role))
		next(w, r.WithContext(ctx))
	}
}

// storeContext bounds storage work for one request.
func (s *Server) storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.storeTimeout)
}

// rateLimited answers a request rejected by the auth limiter.
func rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentRateLimit,
		applog.FieldClientIP, trace.GetClientIP(r.Context()),
		applog.FieldPath, r.URL.Path)
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Body(errorResponse{Error: "rate_limited", Message: "Too many requests, please try again later."}).
		Write(w)
}

// chain applies middlewares so that the first one listed runs outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
