package store

import (
	"context"
	"errors"

	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

// Sentinel errors.
var (
	// ErrNotFound is returned for a missing primary key.
	ErrNotFound = domainerrors.NotFound("record not found")

	// ErrUnknownCollection is returned when an operation targets a collection the schema does not declare.
	ErrUnknownCollection = domainerrors.Storage(nil, "unknown collection")

	// ErrUnknownIndex is returned when a query targets an index the schema does not declare.
	ErrUnknownIndex = domainerrors.Storage(nil, "unknown index")

	// ErrSchemaTooNew is returned when the stored schema version is newer than this binary understands.
	ErrSchemaTooNew = domainerrors.Storage(nil, "stored schema version is newer than supported")
)

// wrapTxnError classifies a transaction failure. Not-found and context errors
// pass through; everything else becomes a storage error.
func wrapTxnError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, domainerrors.ErrNotFound) {
		return err
	}
	return domainerrors.Storagef(err, "%s", op)
}
