// Package access decides what a principal may read and change.
//
// Every function is pure: callers pass the principal and the owner of the
// resource, and get back either a decision or a classified error.
package access

import (
	"ledger/internal/core"
)

// Action is a mutation on an owned resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Scope restricts a read-many query. An empty OwnerID means every owner.
type Scope struct {
	OwnerID string
}

// All reports whether the scope spans every owner.
func (s Scope) All() bool {
	return s.OwnerID == ""
}

// ReadScope narrows a read-many query. Admins see everything unless they name
// a target user; plain users always see only their own records and any target
// they pass is ignored.
func ReadScope(p core.Principal, target string) (Scope, error) {
	if !p.IsAdmin() {
		return Scope{OwnerID: p.ID}, nil
	}
	if target == "" {
		return Scope{}, nil
	}
	if !core.ValidID(target) {
		return Scope{}, core.Validation("invalid userId")
	}
	return Scope{OwnerID: target}, nil
}

// Subject resolves the user whose analytics are computed: the target for an
// admin that supplies one, otherwise the principal itself.
func Subject(p core.Principal, target string) (string, error) {
	subject := p.ID
	if p.IsAdmin() && target != "" {
		subject = target
	}
	if !core.ValidID(subject) {
		return "", core.Validation("invalid userId")
	}
	return subject, nil
}

// Can reports whether p may perform action on a resource owned by ownerID.
func Can(p core.Principal, ownerID string, action Action) bool {
	if !p.IsActive() {
		return false
	}
	switch action {
	case ActionCreate:
		return true
	case ActionUpdate, ActionDelete:
		return p.ID == ownerID || p.IsAdmin()
	default:
		return false
	}
}

// Authorize is Can returning a forbidden error on deny.
func Authorize(p core.Principal, ownerID string, action Action) error {
	if !Can(p, ownerID, action) {
		return core.Forbidden("forbidden")
	}
	return nil
}

// CanManageCategories reports whether p may create or delete categories.
func CanManageCategories(p core.Principal) bool {
	return p.IsActive() && p.IsAdmin()
}

// AuthorizeCategoryChange is CanManageCategories returning a forbidden error.
func AuthorizeCategoryChange(p core.Principal) error {
	if !CanManageCategories(p) {
		return core.Forbidden("admin role required")
	}
	return nil
}
