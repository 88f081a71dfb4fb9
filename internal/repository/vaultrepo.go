// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/famkeep/vaultsync/internal/model"
	"github.com/gofrs/uuid/v5"
)

// VaultRepository provides access to encrypted vault entries. The sync engine
// is the only writer of provider-sourced entries through this interface.
type VaultRepository interface {
	// GetBySourceRef loads the entry linked to (source, sourceReference).
	GetBySourceRef(ctx context.Context, source, sourceRef string) (*model.VaultEntry, error)

	// Upsert atomically inserts or updates the entry keyed on
	// (source, source_reference), returning its id and whether a new row was
	// created. The existing row's id is preserved on conflict.
	Upsert(ctx context.Context, e *model.VaultEntry) (uuid.UUID, bool, error)

	// UpdateByID rewrites a known entry in place, preserving its id.
	UpdateByID(ctx context.Context, e *model.VaultEntry) error

	// DeleteBySourceRef removes the linked entry. Deleting a missing entry is
	// not an error; the bool reports whether a row was removed.
	DeleteBySourceRef(ctx context.Context, source, sourceRef string) (bool, error)
}
