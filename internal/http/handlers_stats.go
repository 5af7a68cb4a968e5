package http

import (
	"net/http"

	applog "ledger/internal/log"
)

func (s *Server) handleTopDays(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	ctx, cancel := s.storeContext(r)
	defer cancel()

	target := targetUser(r)
	days, err := s.stats.TopDays(ctx, p, target)
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	logStats(r, "top_days", target)
	NewJSONResponse().Body(toDayTotals(days)).Write(w)
}

func (s *Server) handleMonthChange(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	ctx, cancel := s.storeContext(r)
	defer cancel()

	target := targetUser(r)
	mc, err := s.stats.MonthOverMonth(ctx, p, target)
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	logStats(r, "mom_change", target)
	NewJSONResponse().Body(monthChangeResponse{
		Previous:      number(mc.Previous),
		Current:       number(mc.Current),
		PercentChange: number(mc.PercentChange),
	}).Write(w)
}

func (s *Server) handlePredictNext(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	ctx, cancel := s.storeContext(r)
	defer cancel()

	target := targetUser(r)
	f, err := s.stats.PredictNextMonth(ctx, p, target)
	if err != nil {
		writeError(w, r, applog.OpStats, err)
		return
	}
	logStats(r, "predict_next", target)
	NewJSONResponse().Body(forecastResponse{PredictedNextMonth: number(f.PredictedNextMonth)}).Write(w)
}

func logStats(r *http.Request, view, target string) {
	fields := applog.NewFields().WithOperation(applog.OpStats).WithTargetUser(target)
	fields["view"] = view
	applog.FromContext(r.Context()).WithComponent(applog.ComponentStats).
		DebugContext(r.Context(), "Computed stats", fields.ToSlice()...)
}
