package service

import (
	"errors"

	"github.com/tenetdb/tenet/internal/store"
)

// mapNotFound swaps the backend's generic missing-row error for the
// entity-specific sentinel callers match on.
func mapNotFound(err, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return sentinel
	}
	return err
}
