package services

import (
	"context"
	"fmt"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

// OwnerLookup resolves the owning user of a resource, for checks where the
// owner is not in the request itself (e.g. a track's artist).
type OwnerLookup func(ctx context.Context) (int64, error)

// AdminOnly rejects every identity that is not an admin.
func AdminOnly(id Identity) error {
	if id.Role != models.RoleAdmin {
		return fmt.Errorf("%w: admin required", shared.ErrForbidden)
	}
	return nil
}

// AnalystOrAdmin admits reporting roles.
func AnalystOrAdmin(id Identity) error {
	if id.Role != models.RoleAdmin && id.Role != models.RoleAnalyst {
		return fmt.Errorf("%w: analyst required", shared.ErrForbidden)
	}
	return nil
}

// OwnerOrAdmin admits the resource owner and admins.
func OwnerOrAdmin(id Identity, ownerID int64) error {
	if id.Role == models.RoleAdmin || id.UserID == ownerID {
		return nil
	}
	return fmt.Errorf("%w: user '%d' does not own this resource", shared.ErrForbidden, id.UserID)
}

// OwnerOrAdminIndirect is [OwnerOrAdmin] with the owner resolved lazily.
// Admins skip the lookup entirely, so a missing resource still authorizes
// (and fails later with its own not-found error).
func OwnerOrAdminIndirect(ctx context.Context, id Identity, lookup OwnerLookup) error {
	if id.Role == models.RoleAdmin {
		return nil
	}
	ownerID, err := lookup(ctx)
	if err != nil {
		return err
	}
	return OwnerOrAdmin(id, ownerID)
}
