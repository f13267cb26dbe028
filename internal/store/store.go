// Package store is the persistence boundary of the moderation core.
// Implementations must provide per-entity atomic read-modify-write so
// that an authorization decision and the mutation it permits act on the
// same snapshot of owner and status.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wanderhq/wanderlust/internal/models"
	"github.com/wanderhq/wanderlust/internal/moderation"
)

// ErrNotFound is returned when an id does not resolve to an entity. The
// HTTP layer also uses it for entities the caller is not entitled to see,
// so the two cases are indistinguishable to outsiders.
var ErrNotFound = errors.New("entity not found")

// ListingFilter restricts listing queries. Zero-value fields are ignored.
type ListingFilter struct {
	Status  *moderation.Status
	OwnerID *uuid.UUID
	Country string
	Search  string // matched against title and location

	// RestrictVisibility limits results to approved listings plus, when
	// Viewer is set, the viewer's own listings in any status.
	RestrictVisibility bool
	Viewer             *uuid.UUID
}

// ReviewFilter restricts review queries. Zero-value fields are ignored.
type ReviewFilter struct {
	Status    *moderation.Status
	ListingID *uuid.UUID
	AuthorID  *uuid.UUID

	// RestrictVisibility limits results to approved reviews plus, when
	// Viewer is set, the viewer's own reviews in any status.
	RestrictVisibility bool
	Viewer             *uuid.UUID
}

// Page selects a slice of a result set. Services clamp the values before
// they reach the store.
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Store is the entity store consumed by the core services.
//
// UpdateListing, UpdateReview, DeleteListing, DeleteReview and ToggleLike
// are atomic with respect to other mutations on the same entity id: the
// closure (or guard) runs against a locked snapshot, and either the whole
// mutation applies or none of it does.
type Store interface {
	CreateListing(ctx context.Context, l *models.Listing) error
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ListListings(ctx context.Context, f ListingFilter, p Page) ([]models.Listing, int64, error)
	CountListings(ctx context.Context, f ListingFilter) (int64, error)

	// UpdateListing loads the listing, locks it, applies mutate and
	// persists the result. If mutate returns an error nothing is written
	// and the error is returned unchanged.
	UpdateListing(ctx context.Context, id uuid.UUID, mutate func(*models.Listing) error) (*models.Listing, error)

	// DeleteListing removes the listing and, in the same transaction, all
	// reviews attached to it. guard runs against the locked snapshot and
	// may veto the delete.
	DeleteListing(ctx context.Context, id uuid.UUID, guard func(*models.Listing) error) error

	// ToggleLike flips userID's membership in the listing's like set and
	// adjusts the counter in one atomic step, keyed by (listing, user).
	ToggleLike(ctx context.Context, listingID, userID uuid.UUID) (liked bool, likeCount int, err error)

	CreateReview(ctx context.Context, r *models.Review) error
	GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListReviews(ctx context.Context, f ReviewFilter, p Page) ([]models.Review, int64, error)
	CountReviews(ctx context.Context, f ReviewFilter) (int64, error)
	UpdateReview(ctx context.Context, id uuid.UUID, mutate func(*models.Review) error) (*models.Review, error)
	DeleteReview(ctx context.Context, id uuid.UUID, guard func(*models.Review) error) error
}
