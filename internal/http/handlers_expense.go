package http

import (
	"net/http"

	applog "ledger/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	ctx, cancel := s.storeContext(r)
	defer cancel()

	list, err := s.ledger.List(ctx, p, targetUser(r))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(toExpenseResponses(list)).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	p, _ := principalFrom(r.Context())
	ctx, cancel := s.storeContext(r)
	defer cancel()

	e, err := s.ledger.Create(ctx, p, in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense created",
		applog.NewFields().
			WithComponent(applog.ComponentLedger).
			WithExpense(e.ID, e.CategoryID, e.Amount.String()).
			ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).Body(toExpenseResponse(e)).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	p, _ := principalFrom(r.Context())
	ctx, cancel := s.storeContext(r)
	defer cancel()

	e, err := s.ledger.Update(ctx, p, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense updated",
		applog.NewFields().
			WithComponent(applog.ComponentLedger).
			WithExpense(e.ID, e.CategoryID, e.Amount.String()).
			ToSlice()...)
	NewJSONResponse().Body(toExpenseResponse(e)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := r.PathValue("id")
	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.ledger.Delete(ctx, p, id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expense deleted",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldExpenseID, id)
	NewJSONResponse().Message("Deleted").Write(w)
}
