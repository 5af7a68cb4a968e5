package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ledger/internal/core"
	"ledger/internal/store"
)

type categoryRow struct {
	core.Category
	seq int64
}

// Store keeps every record in process memory. It satisfies store.Store and is
// used for tests and the memory backend.
type Store struct {
	mu         sync.RWMutex
	seq        int64
	users      map[string]core.User
	emails     map[string]string
	categories map[string]categoryRow
	expenses   map[string]core.Expense
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[string]core.User),
		emails:     make(map[string]string),
		categories: make(map[string]categoryRow),
		expenses:   make(map[string]core.Expense),
	}
}

// NewFromFiles returns a store whose categories are seeded from
// base/seed_categories.txt, one name per line. Blank lines and lines
// starting with # are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, name := range readLines(filepath.Join(base, "seed_categories.txt")) {
		_ = s.CreateCategory(context.Background(), core.Category{
			ID:        core.NewID(),
			Name:      name,
			CreatedAt: core.StoredTime(time.Now()),
		})
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return fmt.Errorf("create user %s: %w", u.Email, store.ErrConflict)
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("create user %s: %w", u.ID, store.ErrConflict)
	}
	s.users[u.ID] = storedUser(u)
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user %s: %w", id, store.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return core.User{}, fmt.Errorf("get user by email: %w", store.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) (map[string]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("update user %s: %w", u.ID, store.ErrNotFound)
	}
	if u.Email != old.Email {
		if _, taken := s.emails[u.Email]; taken {
			return fmt.Errorf("update user %s: %w", u.ID, store.ErrConflict)
		}
		delete(s.emails, old.Email)
		s.emails[u.Email] = u.ID
	}
	s.users[u.ID] = storedUser(u)
	return nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.categories {
		if row.Name == c.Name {
			return fmt.Errorf("create category %q: %w", c.Name, store.ErrConflict)
		}
	}
	s.seq++
	c.CreatedAt = core.StoredTime(c.CreatedAt)
	s.categories[c.ID] = categoryRow{Category: c, seq: s.seq}
	return nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, store.ErrNotFound)
	}
	return row.Category, nil
}

func (s *Store) FindCategoryByName(_ context.Context, name string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.categories {
		if row.Name == name {
			return row.Category, nil
		}
	}
	return core.Category{}, fmt.Errorf("find category %q: %w", name, store.ErrNotFound)
}

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.RLock()
	rows := make([]categoryRow, 0, len(s.categories))
	for _, row := range s.categories {
		rows = append(rows, row)
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]core.Category, len(rows))
	for i, row := range rows {
		out[i] = row.Category
	}
	return out, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("delete category %s: %w", id, store.ErrNotFound)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; ok {
		return fmt.Errorf("create expense %s: %w", e.ID, store.ErrConflict)
	}
	s.expenses[e.ID] = storedExpense(e)
	return nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, store.ErrNotFound)
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, f store.ExpenseFilter) ([]core.Expense, error) {
	s.mu.RLock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.expenses[e.ID]
	if !ok || old.OwnerID != e.OwnerID {
		return fmt.Errorf("update expense %s: %w", e.ID, store.ErrNotFound)
	}
	s.expenses[e.ID] = storedExpense(e)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.expenses[id]
	if !ok || old.OwnerID != ownerID {
		return fmt.Errorf("delete expense %s: %w", id, store.ErrNotFound)
	}
	delete(s.expenses, id)
	return nil
}

// storedUser and storedExpense keep timestamps at the resolution the SQL
// engine persists, so both engines read back identical records.
func storedUser(u core.User) core.User {
	u.CreatedAt = core.StoredTime(u.CreatedAt)
	u.UpdatedAt = core.StoredTime(u.UpdatedAt)
	return u
}

func storedExpense(e core.Expense) core.Expense {
	e.Date = core.StoredTime(e.Date)
	e.CreatedAt = core.StoredTime(e.CreatedAt)
	e.UpdatedAt = core.StoredTime(e.UpdatedAt)
	return e
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
