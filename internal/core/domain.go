package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"

	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

type (
	Role   string
	Status string

	User struct {
		ID           string
		Name         string
		Email        string
		PasswordHash string
		Role         Role
		Status       Status
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// Principal is the authenticated actor of a request, resolved from the
	// live user record.
	Principal struct {
		ID     string
		Name   string
		Email  string
		Role   Role
		Status Status
	}

	Category struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	Expense struct {
		ID          string
		OwnerID     string
		CategoryID  string
		Amount      decimal.Decimal
		Date        time.Time
		Description string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// ExpenseInput carries the caller-supplied fields of an expense. Create
	// requires CategoryID and Amount; update applies only the fields that are set.
	ExpenseInput struct {
		CategoryID  Optional[string]
		Amount      Optional[decimal.Decimal]
		Date        Optional[time.Time]
		Description Optional[string]
	}
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusBlocked
}

// Principal returns the request identity for u.
func (u User) Principal() Principal {
	return Principal{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Status: u.Status,
	}
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsActive() bool {
	return p.Status == StatusActive
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is a well-formed record identifier.
func ValidID(id string) bool {
	if strings.TrimSpace(id) != id || id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCategoryName trims surrounding whitespace from a category name.
func NormalizeCategoryName(name string) string {
	return strings.TrimSpace(name)
}

// Apply returns e with every set field of in applied. Null values for
// description clear it; other null fields are rejected before Apply is called.
func (in ExpenseInput) Apply(e Expense) Expense {
	if v, ok := in.CategoryID.Get(); ok {
		e.CategoryID = v
	}
	if v, ok := in.Amount.Get(); ok {
		e.Amount = v
	}
	if v, ok := in.Date.Get(); ok {
		e.Date = StoredTime(v)
	}
	if in.Description.Set {
		e.Description = in.Description.Value
	}
	return e
}

// Check validates the shape of in. With create set, category and amount are
// mandatory.
func (in ExpenseInput) Check(create bool) error {
	if create && (!in.CategoryID.Present() || !in.Amount.Present()) {
		return Validation("category and amount are required")
	}
	if in.CategoryID.Null {
		return Validation("category cannot be null")
	}
	if in.Amount.Null {
		return Validation("amount cannot be null")
	}
	if v, ok := in.Amount.Get(); ok && !ValidAmount(v) {
		return Validation("invalid amount")
	}
	if v, ok := in.CategoryID.Get(); ok && !ValidID(v) {
		return Validation("invalid category")
	}
	if len(in.Description.Value) > MaxDescriptionLength {
		return Validation("description too long")
	}
	return nil
}

// MaxDescriptionLength bounds expense descriptions.
const MaxDescriptionLength = 500
