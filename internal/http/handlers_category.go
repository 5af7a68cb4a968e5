package http

import (
	"net/http"

	applog "ledger/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.storeContext(r)
	defer cancel()

	cats, err := s.categories.List(ctx)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewJSONResponse().Body(toCategoryResponses(cats)).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	p, _ := principalFrom(r.Context())
	ctx, cancel := s.storeContext(r)
	defer cancel()

	c, err := s.categories.Create(ctx, p, sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Category created",
		applog.FieldComponent, applog.ComponentCategory,
		applog.FieldCategoryID, c.ID)
	NewJSONResponse().Status(http.StatusCreated).Body(toCategoryResponse(c)).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := r.PathValue("id")
	ctx, cancel := s.storeContext(r)
	defer cancel()

	if err := s.categories.Delete(ctx, p, id); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Category deleted",
		applog.FieldComponent, applog.ComponentCategory,
		applog.FieldCategoryID, id)
	NewJSONResponse().Message("Category deleted").Write(w)
}
