package services

import (
	"ledger/internal/core"
)

type (
	UserRef struct {
		ID    string
		Name  string
		Email string
	}

	CategoryRef struct {
		ID   string
		Name string
	}

	// ExpandedExpense is an expense joined with its owner and category for
	// display. Either reference is nil when the record no longer exists.
	ExpandedExpense struct {
		core.Expense
		User     *UserRef
		Category *CategoryRef
	}
)

// Expand joins e with its owner and category.
func Expand(e core.Expense, users map[string]core.User, categories map[string]core.Category) ExpandedExpense {
	out := ExpandedExpense{Expense: e}
	if u, ok := users[e.OwnerID]; ok {
		out.User = &UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	if c, ok := categories[e.CategoryID]; ok {
		out.Category = &CategoryRef{ID: c.ID, Name: c.Name}
	}
	return out
}

// ExpandAll applies Expand to every expense, keeping order.
func ExpandAll(expenses []core.Expense, users map[string]core.User, categories map[string]core.Category) []ExpandedExpense {
	out := make([]ExpandedExpense, len(expenses))
	for i, e := range expenses {
		out[i] = Expand(e, users, categories)
	}
	return out
}

func ownerIDs(expenses []core.Expense) []string {
	seen := make(map[string]struct{}, len(expenses))
	ids := make([]string, 0, len(expenses))
	for _, e := range expenses {
		if _, ok := seen[e.OwnerID]; ok {
			continue
		}
		seen[e.OwnerID] = struct{}{}
		ids = append(ids, e.OwnerID)
	}
	return ids
}

func categoriesByID(cats []core.Category) map[string]core.Category {
	out := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		out[c.ID] = c
	}
	return out
}
