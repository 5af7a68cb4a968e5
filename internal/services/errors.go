package services

import (
	"errors"

	"ledger/internal/core"
	"ledger/internal/store"
)

// storeErr translates a storage failure into the error taxonomy. notFound is
// the message used when the record is missing.
func storeErr(op string, err error, notFound string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return core.NotFound(notFound)
	case errors.Is(err, store.ErrConflict):
		return core.Conflict("already exists")
	default:
		return core.Internal(op, err)
	}
}
