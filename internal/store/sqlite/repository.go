package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"ledger/internal/core"
	"ledger/internal/store"
)

const dsnPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Repository is the SQLite implementation of store.Store.
type Repository struct {
	db *sql.DB
}

var _ store.Store = (*Repository)(nil)

// DSN returns the connection string for dbPath with the pragmas the
// repository relies on.
func DSN(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + dsnPragmas
}

// NewRepository opens (creating if needed) the database at dbPath and applies
// pending migrations.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), string(u.Status),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create user: %w", classify(err))
	}
	slog.InfoContext(ctx, "User saved to SQLite", "user_id", u.ID, "role", u.Role)
	return nil
}

const userColumns = `id, name, email, password_hash, role, status, created_at, updated_at`

func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *Repository) GetUsers(ctx context.Context, ids []string) (map[string]core.User, error) {
	out := make(map[string]core.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateUser(ctx context.Context, u core.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		u.Name, u.Email, u.PasswordHash, string(u.Role), string(u.Status), toMillis(u.UpdatedAt), u.ID)
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.ID, classify(err))
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	return nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, toMillis(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("create category %q: %w", c.Name, classify(err))
	}
	slog.InfoContext(ctx, "Category saved to SQLite", "category_id", c.ID, "name", c.Name)
	return nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, err)
	}
	return c, nil
}

func (r *Repository) FindCategoryByName(ctx context.Context, name string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("find category %q: %w", name, err)
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM categories ORDER BY name ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Category deleted from SQLite", "category_id", id)
	return nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, category_id, amount, date, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.CategoryID, e.Amount.String(), toMillis(e.Date), e.Description,
		toMillis(e.CreatedAt), toMillis(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create expense: %w", classify(err))
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"expense_id", e.ID,
		"owner_id", e.OwnerID,
		"amount", e.Amount.String(),
		"date", e.Date.Format(time.DateOnly))

	return nil
}

const expenseColumns = `id, owner_id, category_id, amount, date, description, created_at, updated_at`

func (r *Repository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	return e, nil
}

func (r *Repository) ListExpenses(ctx context.Context, f store.ExpenseFilter) ([]core.Expense, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, toMillis(f.From))
	}
	if !f.Before.IsZero() {
		where = append(where, "date < ?")
		args = append(args, toMillis(f.Before))
	}
	if !f.Until.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, toMillis(f.Until))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET category_id = ?, amount = ?, date = ?, description = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		e.CategoryID, e.Amount.String(), toMillis(e.Date), e.Description, toMillis(e.UpdatedAt),
		e.ID, e.OwnerID)
	if err != nil {
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	return nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", "expense_id", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (core.User, error) {
	var (
		u                    core.User
		role, status         string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &status, &createdAt, &updatedAt); err != nil {
		return core.User{}, notFound(err)
	}
	u.Role = core.Role(role)
	u.Status = core.Status(status)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

func scanCategory(s scanner) (core.Category, error) {
	var (
		c         core.Category
		createdAt int64
	)
	if err := s.Scan(&c.ID, &c.Name, &createdAt); err != nil {
		return core.Category{}, notFound(err)
	}
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                          core.Expense
		amount                     string
		date, createdAt, updatedAt int64
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.CategoryID, &amount, &date, &e.Description, &createdAt, &updatedAt); err != nil {
		return core.Expense{}, notFound(err)
	}
	parsed, err := core.ParseAmount(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %s amount %q: %w", e.ID, amount, err)
	}
	e.Amount = parsed
	e.Date = fromMillis(date)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// classify maps constraint violations onto store.ErrConflict.
func classify(err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
