package http

import (
	"net/http"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

func handleBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Expense Tracker API is up"))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := s.storeContext(r)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
				applog.FieldComponent, applog.ComponentStorage,
				applog.FieldError, err.Error())
			NewJSONResponse().
				Status(http.StatusServiceUnavailable).
				Body(map[string]string{"status": "unavailable"}).
				Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpRegister, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	u, err := s.auth.Register(ctx, services.RegisterInput{
		Name:     sanitizeInput(req.Name),
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, applog.OpRegister, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		applog.FieldComponent, applog.ComponentAuth,
		applog.FieldUserID, u.ID)
	NewJSONResponse().Status(http.StatusCreated).Message("User registered").Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpLogin, err)
		return
	}

	ctx, cancel := s.storeContext(r)
	defer cancel()
	session, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if kind := core.KindOf(err); kind != core.KindInternal {
			applog.NewStructuredLogger(applog.FromContext(r.Context())).
				AuthRejected(r.Context(), applog.OpLogin, core.PublicMessage(err), s.detector.ExtractClientIP(r))
		}
		writeError(w, r, applog.OpLogin, err)
		return
	}

	user := toUserResponse(session.User)
	user.Status = ""
	NewJSONResponse().Body(loginResponse{Token: session.Token, User: user}).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	ctx, cancel := s.storeContext(r)
	defer cancel()

	u, err := s.auth.Me(ctx, p)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Body(toUserResponse(u)).Write(w)
}
