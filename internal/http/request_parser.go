// Package http provides the JSON API server and its handlers.
//
// This file implements request body decoding and the shared parsing of
// query parameters and path ids.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

type (
	credentialsRequest struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	categoryRequest struct {
		Name string `json:"name"`
	}

	// expenseRequest accepts the date as a string so the relaxed layouts of
	// core.ParseTime apply. Amount accepts a JSON number or a numeric string.
	expenseRequest struct {
		Category    core.Optional[string]          `json:"category"`
		Amount      core.Optional[decimal.Decimal] `json:"amount"`
		Date        core.Optional[string]          `json:"date"`
		Description core.Optional[string]          `json:"description"`
	}
)

// decodeJSON reads a single JSON object into dst. Unknown fields, trailing
// data and bodies over maxBodyBytes are rejected as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return core.Validation("request body too large")
		case errors.Is(err, io.EOF):
			return core.Validation("request body required")
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			return core.Validation("unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return core.Validation("invalid JSON body")
		}
	}
	if dec.More() {
		return core.Validation("invalid JSON body")
	}
	return nil
}

// toInput converts the wire form into a patch. A null date and a present but
// blank category are rejected; an empty date string counts as absent.
func (req expenseRequest) toInput() (core.ExpenseInput, error) {
	in := core.ExpenseInput{
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.Description.Set {
		in.Description.Value = sanitizeInput(req.Description.Value)
	}

	if req.Category.Set {
		v := strings.TrimSpace(req.Category.Value)
		if !req.Category.Null && v == "" {
			return in, core.Validation("invalid category")
		}
		in.CategoryID = core.Optional[string]{Value: v, Set: true, Null: req.Category.Null}
	}

	if req.Date.Null {
		return in, core.Validation("date cannot be null")
	}
	if raw, ok := req.Date.Get(); ok && strings.TrimSpace(raw) != "" {
		t, err := core.ParseTime(raw)
		if err != nil {
			return in, core.Validation("invalid date")
		}
		in.Date = core.Some(t)
	}
	return in, nil
}

// targetUser returns the userId query parameter, trimmed.
func targetUser(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
