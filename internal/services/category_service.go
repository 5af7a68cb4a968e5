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

// CategoryService manages the shared category directory.
type CategoryService struct {
	categories store.CategoryStore
	events     EventPublisher
	now        func() time.Time
}

func NewCategoryService(categories store.CategoryStore, events EventPublisher) *CategoryService {
	return &CategoryService{categories: categories, events: events, now: time.Now}
}

// Create adds a category. Names are unique after trimming, compared exactly.
func (s *CategoryService) Create(ctx context.Context, p core.Principal, name string) (core.Category, error) {
	if err := access.AuthorizeCategoryChange(p); err != nil {
		return core.Category{}, err
	}
	name = core.NormalizeCategoryName(name)
	if name == "" {
		return core.Category{}, core.Validation("Name required")
	}

	if _, err := s.categories.FindCategoryByName(ctx, name); err == nil {
		return core.Category{}, core.Conflict("Category already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return core.Category{}, core.Internal("find category", err)
	}

	c := core.Category{ID: core.NewID(), Name: name, CreatedAt: core.StoredTime(s.now())}
	if err := s.categories.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return core.Category{}, core.Conflict("Category already exists")
		}
		return core.Category{}, core.Internal("create category", err)
	}

	slog.InfoContext(ctx, "Category created", "category_id", c.ID, "name", c.Name)
	publish(ctx, s.events, amqp.NewLedgerEvent(amqp.CategoryCreated, c.ID, "", p.ID))
	return c, nil
}

// List returns every category ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]core.Category, error) {
	cats, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, core.Internal("list categories", err)
	}
	return cats, nil
}

// Delete removes a category. Expenses referencing it are left untouched.
func (s *CategoryService) Delete(ctx context.Context, p core.Principal, id string) error {
	if err := access.AuthorizeCategoryChange(p); err != nil {
		return err
	}
	if !core.ValidID(id) {
		return core.Validation("invalid category id")
	}
	if err := s.categories.DeleteCategory(ctx, id); err != nil {
		return storeErr("delete category", err, "Category not found")
	}

	slog.InfoContext(ctx, "Category deleted", "category_id", id)
	publish(ctx, s.events, amqp.NewLedgerEvent(amqp.CategoryDeleted, id, "", p.ID))
	return nil
}
