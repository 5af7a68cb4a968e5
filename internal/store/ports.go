package store

import (
	"context"
	"errors"
	"time"

	"ledger/internal/core"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
)

// ExpenseFilter selects expenses. Zero fields do not constrain the query.
type ExpenseFilter struct {
	OwnerID string
	From    time.Time // date >= From
	Before  time.Time // date < Before
	Until   time.Time // date <= Until
}

// Ports for storage engines.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) error
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		// GetUsers returns the users found among ids, keyed by id. Missing ids
		// are simply absent from the result.
		GetUsers(ctx context.Context, ids []string) (map[string]core.User, error)
		UpdateUser(ctx context.Context, u core.User) error
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, id string) (core.Category, error)
		FindCategoryByName(ctx context.Context, name string) (core.Category, error)
		// ListCategories orders by name, then insertion order.
		ListCategories(ctx context.Context) ([]core.Category, error)
		DeleteCategory(ctx context.Context, id string) error
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) error
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		// ListExpenses orders by date, newest first.
		ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error)
		// UpdateExpense writes e only if the stored record still has e.OwnerID.
		UpdateExpense(ctx context.Context, e core.Expense) error
		// DeleteExpense removes the record only if it is owned by ownerID.
		DeleteExpense(ctx context.Context, id, ownerID string) error
	}

	// Store is the full storage contract a backend provides.
	Store interface {
		UserStore
		CategoryStore
		ExpenseStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// Match reports whether e satisfies f. Engines without a query language use it
// directly; it also documents the filter semantics. Dates and bounds are
// compared at core.StoredTime resolution.
func (f ExpenseFilter) Match(e core.Expense) bool {
	if f.OwnerID != "" && e.OwnerID != f.OwnerID {
		return false
	}
	date := core.StoredTime(e.Date)
	if !f.From.IsZero() && date.Before(core.StoredTime(f.From)) {
		return false
	}
	if !f.Before.IsZero() && !date.Before(core.StoredTime(f.Before)) {
		return false
	}
	if !f.Until.IsZero() && date.After(core.StoredTime(f.Until)) {
		return false
	}
	return true
}
