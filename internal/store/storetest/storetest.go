// Package storetest holds the behavior every store.Store engine must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ledger/internal/core"
	"ledger/internal/store"
)

// Suite runs the store contract against the engine returned by Open.
type Suite struct {
	suite.Suite
	Open func(t *testing.T) store.Store

	st  store.Store
	ctx context.Context
}

// Run executes the contract suite with a fresh store per test.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	suite.Run(t, &Suite{Open: open})
}

func (s *Suite) SetupTest() {
	s.st = s.Open(s.T())
	s.ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	s.Require().NoError(s.st.Close())
}

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func (s *Suite) user(email string) core.User {
	u := core.User{
		ID:           core.NewID(),
		Name:         "User " + email,
		Email:        email,
		PasswordHash: "hash",
		Role:         core.RoleUser,
		Status:       core.StatusActive,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
	s.Require().NoError(s.st.CreateUser(s.ctx, u))
	return u
}

func (s *Suite) category(name string) core.Category {
	c := core.Category{ID: core.NewID(), Name: name, CreatedAt: base}
	s.Require().NoError(s.st.CreateCategory(s.ctx, c))
	return c
}

func (s *Suite) expense(owner, category string, amount string, date time.Time) core.Expense {
	e := core.Expense{
		ID:          core.NewID(),
		OwnerID:     owner,
		CategoryID:  category,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Description: "item",
		CreatedAt:   base,
		UpdatedAt:   base,
	}
	s.Require().NoError(s.st.CreateExpense(s.ctx, e))
	return e
}

func (s *Suite) TestPing() {
	s.NoError(s.st.Ping(s.ctx))
}

func (s *Suite) TestUsers() {
	u := s.user("ann@example.com")

	got, err := s.st.GetUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Email, got.Email)
	s.Equal(core.RoleUser, got.Role)
	s.True(base.Equal(got.CreatedAt))

	got, err = s.st.GetUserByEmail(s.ctx, "ann@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	dup := u
	dup.ID = core.NewID()
	s.ErrorIs(s.st.CreateUser(s.ctx, dup), store.ErrConflict)

	_, err = s.st.GetUser(s.ctx, core.NewID())
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.st.GetUserByEmail(s.ctx, "nobody@example.com")
	s.ErrorIs(err, store.ErrNotFound)

	u.Status = core.StatusBlocked
	u.Role = core.RoleAdmin
	s.Require().NoError(s.st.UpdateUser(s.ctx, u))
	got, err = s.st.GetUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(core.StatusBlocked, got.Status)
	s.Equal(core.RoleAdmin, got.Role)

	ghost := u
	ghost.ID = core.NewID()
	ghost.Email = "ghost@example.com"
	s.ErrorIs(s.st.UpdateUser(s.ctx, ghost), store.ErrNotFound)
}

func (s *Suite) TestGetUsers() {
	a := s.user("a@example.com")
	b := s.user("b@example.com")
	missing := core.NewID()

	got, err := s.st.GetUsers(s.ctx, []string{a.ID, b.ID, missing})
	s.Require().NoError(err)
	s.Len(got, 2)
	s.Equal("a@example.com", got[a.ID].Email)
	s.Equal("b@example.com", got[b.ID].Email)

	got, err = s.st.GetUsers(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *Suite) TestCategories() {
	s.category("Travel")
	food := s.category("Food")
	s.category("Bills")

	list, err := s.st.ListCategories(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal([]string{"Bills", "Food", "Travel"}, []string{list[0].Name, list[1].Name, list[2].Name})

	err = s.st.CreateCategory(s.ctx, core.Category{ID: core.NewID(), Name: "Food", CreatedAt: base})
	s.ErrorIs(err, store.ErrConflict)

	// case-sensitive uniqueness
	s.category("food")

	got, err := s.st.FindCategoryByName(s.ctx, "Food")
	s.Require().NoError(err)
	s.Equal(food.ID, got.ID)

	got, err = s.st.GetCategory(s.ctx, food.ID)
	s.Require().NoError(err)
	s.Equal("Food", got.Name)

	s.Require().NoError(s.st.DeleteCategory(s.ctx, food.ID))
	s.ErrorIs(s.st.DeleteCategory(s.ctx, food.ID), store.ErrNotFound)
	_, err = s.st.GetCategory(s.ctx, food.ID)
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.st.FindCategoryByName(s.ctx, "Food")
	s.ErrorIs(err, store.ErrNotFound)

	// the name is free again
	s.category("Food")
}

func (s *Suite) TestExpensesCRUD() {
	owner := s.user("owner@example.com")
	cat := s.category("Food")
	e := s.expense(owner.ID, cat.ID, "12.34", base)

	got, err := s.st.GetExpense(s.ctx, e.ID)
	s.Require().NoError(err)
	s.True(got.Amount.Equal(decimal.RequireFromString("12.34")))
	s.True(base.Equal(got.Date))
	s.Equal(owner.ID, got.OwnerID)
	s.Equal("item", got.Description)

	got.Amount = decimal.Zero
	got.Description = ""
	got.UpdatedAt = base.Add(time.Hour)
	s.Require().NoError(s.st.UpdateExpense(s.ctx, got))

	got, err = s.st.GetExpense(s.ctx, e.ID)
	s.Require().NoError(err)
	s.True(got.Amount.IsZero())
	s.Equal("", got.Description)

	wrongOwner := got
	wrongOwner.OwnerID = core.NewID()
	s.ErrorIs(s.st.UpdateExpense(s.ctx, wrongOwner), store.ErrNotFound)
	s.ErrorIs(s.st.DeleteExpense(s.ctx, e.ID, core.NewID()), store.ErrNotFound)

	s.Require().NoError(s.st.DeleteExpense(s.ctx, e.ID, owner.ID))
	_, err = s.st.GetExpense(s.ctx, e.ID)
	s.ErrorIs(err, store.ErrNotFound)
	s.ErrorIs(s.st.DeleteExpense(s.ctx, e.ID, owner.ID), store.ErrNotFound)
}

func (s *Suite) TestListExpensesFilterAndOrder() {
	ann := s.user("ann@example.com")
	bob := s.user("bob@example.com")
	cat := s.category("Food")

	march1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s.expense(ann.ID, cat.ID, "1", time.Date(2025, 2, 28, 23, 59, 59, 0, time.UTC))
	s.expense(ann.ID, cat.ID, "2", march1)
	s.expense(ann.ID, cat.ID, "3", time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC))
	s.expense(bob.ID, cat.ID, "4", time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC))

	all, err := s.st.ListExpenses(s.ctx, store.ExpenseFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	for i := 1; i < len(all); i++ {
		s.False(all[i].Date.After(all[i-1].Date), "expenses must be newest first")
	}

	mine, err := s.st.ListExpenses(s.ctx, store.ExpenseFilter{OwnerID: ann.ID})
	s.Require().NoError(err)
	s.Len(mine, 3)
	for _, e := range mine {
		s.Equal(ann.ID, e.OwnerID)
	}

	march, err := s.st.ListExpenses(s.ctx, store.ExpenseFilter{
		OwnerID: ann.ID,
		From:    march1,
		Before:  time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	s.Len(march, 2)

	february, err := s.st.ListExpenses(s.ctx, store.ExpenseFilter{OwnerID: ann.ID, Before: march1})
	s.Require().NoError(err)
	s.Require().Len(february, 1)
	s.Equal("1", february[0].Amount.String())

	untilMarch1, err := s.st.ListExpenses(s.ctx, store.ExpenseFilter{OwnerID: ann.ID, From: march1, Until: march1})
	s.Require().NoError(err)
	s.Require().Len(untilMarch1, 1)
	s.Equal("2", untilMarch1[0].Amount.String())
}

func (s *Suite) TestTimestampsKeptAtMillisecondResolution() {
	owner := s.user("precise@example.com")
	cat := s.category("Precise")

	// Two expenses half a millisecond apart land on the same stored instant.
	first := base.Add(123*time.Millisecond + 200*time.Microsecond)
	second := first.Add(500 * time.Microsecond)
	a := s.expense(owner.ID, cat.ID, "1", first)
	b := s.expense(owner.ID, cat.ID, "2", second)

	got, err := s.st.GetExpense(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(got.Date.Equal(base.Add(123*time.Millisecond)), "date %s", got.Date)
	s.Equal(time.UTC, got.Date.Location())

	// Bounds are compared at the same resolution, so a sub-millisecond bound
	// includes or excludes both records the same way in every engine.
	list, err := s.st.ListExpenses(s.ctx, store.ExpenseFilter{OwnerID: owner.ID, From: second})
	s.Require().NoError(err)
	s.Len(list, 2)

	list, err = s.st.ListExpenses(s.ctx, store.ExpenseFilter{OwnerID: owner.ID, Before: second})
	s.Require().NoError(err)
	s.Empty(list)

	list, err = s.st.ListExpenses(s.ctx, store.ExpenseFilter{OwnerID: owner.ID, Until: first})
	s.Require().NoError(err)
	s.Len(list, 2)
	s.ElementsMatch([]string{a.ID, b.ID}, expenseIDs(list))
}

func (s *Suite) TestContextIsAccepted() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := s.st.ListCategories(ctx)
	require.NoError(s.T(), err)
}

func expenseIDs(list []core.Expense) []string {
	ids := make([]string, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	return ids
}
