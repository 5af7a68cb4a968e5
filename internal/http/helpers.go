package http

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/services"
)

type (
	userResponse struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Email  string `json:"email"`
		Role   string `json:"role"`
		Status string `json:"status,omitempty"`
	}

	loginResponse struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}

	categoryResponse struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	userRef struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	categoryRef struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// expenseResponse carries the raw ids next to the expanded references,
	// which are null when the referenced record no longer exists.
	expenseResponse struct {
		ID          string       `json:"id"`
		OwnerID     string       `json:"ownerId"`
		CategoryID  string       `json:"categoryId"`
		User        *userRef     `json:"user"`
		Category    *categoryRef `json:"category"`
		Amount      json.Number  `json:"amount"`
		Date        time.Time    `json:"date"`
		Description string       `json:"description"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
	}

	dayTotalResponse struct {
		Day   string      `json:"day"`
		Total json.Number `json:"total"`
	}

	monthChangeResponse struct {
		Previous      json.Number `json:"previous"`
		Current       json.Number `json:"current"`
		PercentChange json.Number `json:"percentChange"`
	}

	forecastResponse struct {
		PredictedNextMonth json.Number `json:"predictedNextMonth"`
	}
)

// number renders d as a JSON number without float rounding.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toUserResponse(u core.User) userResponse {
	return userResponse{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   string(u.Role),
		Status: string(u.Status),
	}
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}

func toCategoryResponses(cats []core.Category) []categoryResponse {
	out := make([]categoryResponse, len(cats))
	for i, c := range cats {
		out[i] = toCategoryResponse(c)
	}
	return out
}

func toExpenseResponse(e services.ExpandedExpense) expenseResponse {
	out := expenseResponse{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		CategoryID:  e.CategoryID,
		Amount:      number(e.Amount),
		Date:        e.Date.UTC(),
		Description: e.Description,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
	if e.User != nil {
		out.User = &userRef{ID: e.User.ID, Name: e.User.Name, Email: e.User.Email}
	}
	if e.Category != nil {
		out.Category = &categoryRef{ID: e.Category.ID, Name: e.Category.Name}
	}
	return out
}

func toExpenseResponses(list []services.ExpandedExpense) []expenseResponse {
	out := make([]expenseResponse, len(list))
	for i, e := range list {
		out[i] = toExpenseResponse(e)
	}
	return out
}

func toDayTotals(days []core.DayTotal) []dayTotalResponse {
	out := make([]dayTotalResponse, len(days))
	for i, d := range days {
		out[i] = dayTotalResponse{Day: d.Day, Total: number(d.Total)}
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
