package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ledger/internal/access"
	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/store"
)

// LedgerStore is the storage a LedgerService needs.
type LedgerStore interface {
	store.UserStore
	store.CategoryStore
	store.ExpenseStore
}

// LedgerService applies access rules to expense reads and writes.
type LedgerService struct {
	store  LedgerStore
	events EventPublisher
	now    func() time.Time
}

func NewLedgerService(s LedgerStore, events EventPublisher) *LedgerService {
	return &LedgerService{store: s, events: events, now: time.Now}
}

// List returns the expenses visible to p, newest first. Admins may narrow the
// result to targetUserID.
func (s *LedgerService) List(ctx context.Context, p core.Principal, targetUserID string) ([]ExpandedExpense, error) {
	scope, err := access.ReadScope(p, targetUserID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpenses(ctx, store.ExpenseFilter{OwnerID: scope.OwnerID})
	if err != nil {
		return nil, core.Internal("list expenses", err)
	}
	if len(expenses) == 0 {
		return []ExpandedExpense{}, nil
	}

	users, err := s.store.GetUsers(ctx, ownerIDs(expenses))
	if err != nil {
		return nil, core.Internal("load owners", err)
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, core.Internal("load categories", err)
	}

	slog.DebugContext(ctx, "Listed expenses", "user_id", p.ID, "scope", scope.OwnerID, "count", len(expenses))
	return ExpandAll(expenses, users, categoriesByID(cats)), nil
}

// Create records an expense owned by p.
func (s *LedgerService) Create(ctx context.Context, p core.Principal, in core.ExpenseInput) (ExpandedExpense, error) {
	if err := access.Authorize(p, p.ID, access.ActionCreate); err != nil {
		return ExpandedExpense{}, err
	}
	if err := in.Check(true); err != nil {
		return ExpandedExpense{}, err
	}
	cat, err := s.category(ctx, in.CategoryID.Value)
	if err != nil {
		return ExpandedExpense{}, err
	}

	now := core.StoredTime(s.now())
	e := in.Apply(core.Expense{
		ID:        core.NewID(),
		OwnerID:   p.ID,
		Date:      now,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return ExpandedExpense{}, core.Internal("create expense", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"expense_id", e.ID,
		"user_id", p.ID,
		"category_id", e.CategoryID,
		"amount", e.Amount.String())
	publish(ctx, s.events, amqp.NewLedgerEvent(amqp.ExpenseCreated, e.ID, e.OwnerID, p.ID))
	return s.expand(ctx, e, &cat)
}

// Update applies the set fields of in to the expense with id.
func (s *LedgerService) Update(ctx context.Context, p core.Principal, id string, in core.ExpenseInput) (ExpandedExpense, error) {
	e, err := s.authorized(ctx, p, id, access.ActionUpdate)
	if err != nil {
		return ExpandedExpense{}, err
	}
	if err := in.Check(false); err != nil {
		return ExpandedExpense{}, err
	}

	var cat *core.Category
	if catID, ok := in.CategoryID.Get(); ok {
		c, err := s.category(ctx, catID)
		if err != nil {
			return ExpandedExpense{}, err
		}
		cat = &c
	}

	updated := in.Apply(e)
	updated.UpdatedAt = core.StoredTime(s.now())
	if err := s.store.UpdateExpense(ctx, updated); err != nil {
		return ExpandedExpense{}, storeErr("update expense", err, "Expense not found")
	}

	slog.InfoContext(ctx, "Expense updated", "expense_id", id, "user_id", p.ID)
	publish(ctx, s.events, amqp.NewLedgerEvent(amqp.ExpenseUpdated, id, updated.OwnerID, p.ID))
	return s.expand(ctx, updated, cat)
}

// Delete removes the expense with id.
func (s *LedgerService) Delete(ctx context.Context, p core.Principal, id string) error {
	e, err := s.authorized(ctx, p, id, access.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id, e.OwnerID); err != nil {
		return storeErr("delete expense", err, "Expense not found")
	}

	slog.InfoContext(ctx, "Expense deleted", "expense_id", id, "user_id", p.ID)
	publish(ctx, s.events, amqp.NewLedgerEvent(amqp.ExpenseDeleted, id, e.OwnerID, p.ID))
	return nil
}

// authorized loads the expense with id and checks that p may apply action.
func (s *LedgerService) authorized(ctx context.Context, p core.Principal, id string, action access.Action) (core.Expense, error) {
	if !core.ValidID(id) {
		return core.Expense{}, core.Validation("Invalid id")
	}
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, storeErr("get expense", err, "Expense not found")
	}
	if err := access.Authorize(p, e.OwnerID, action); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// category resolves a category reference supplied by a caller.
func (s *LedgerService) category(ctx context.Context, id string) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return core.Category{}, core.Validation("invalid category")
	}
	if err != nil {
		return core.Category{}, core.Internal("get category", err)
	}
	return c, nil
}

// expand projects a single expense. cat may be passed when already loaded.
func (s *LedgerService) expand(ctx context.Context, e core.Expense, cat *core.Category) (ExpandedExpense, error) {
	users, err := s.store.GetUsers(ctx, []string{e.OwnerID})
	if err != nil {
		return ExpandedExpense{}, core.Internal("load owner", err)
	}

	cats := map[string]core.Category{}
	if cat != nil {
		cats[cat.ID] = *cat
	} else if c, err := s.store.GetCategory(ctx, e.CategoryID); err == nil {
		cats[c.ID] = c
	} else if !errors.Is(err, store.ErrNotFound) {
		return ExpandedExpense{}, core.Internal("load category", err)
	}
	return Expand(e, users, cats), nil
}
