package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wanderhq/wanderlust/internal/identity"
	"github.com/wanderhq/wanderlust/internal/logging"
	"github.com/wanderhq/wanderlust/internal/models"
	"github.com/wanderhq/wanderlust/internal/moderation"
	"github.com/wanderhq/wanderlust/internal/monitoring"
	"github.com/wanderhq/wanderlust/internal/policy"
	"github.com/wanderhq/wanderlust/internal/store"
)

// Service errors
var (
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrCommentRequired = errors.New("comment must not be empty")
)

// Service implements review creation, deletion and visibility-filtered
// reads. Reviews are never edited in place.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

// NewService creates a review service.
func NewService(st store.Store) *Service {
	return &Service{
		store: st,
		log:   logging.NewLogger("review"),
	}
}

// CreateReviewInput is the validated review payload. Status and author are
// forced server-side.
type CreateReviewInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
}

// ListResult is a paginated page of reviews.
type ListResult struct {
	Reviews  []models.Review `json:"reviews"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

func (in *CreateReviewInput) validate() error {
	if in.Rating < models.MinRating || in.Rating > models.MaxRating {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, in.Rating)
	}
	if strings.TrimSpace(in.Comment) == "" {
		return ErrCommentRequired
	}
	return nil
}

// Create attaches a pending review to a listing the caller can see.
func (s *Service) Create(ctx context.Context, ident identity.Identity, listingID uuid.UUID, in *CreateReviewInput) (*models.Review, error) {
	if err := policy.Authorize(ident, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	// The parent must exist and be visible to the author; reviewing an
	// unapproved listing would leak its existence.
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !policy.CanSee(ident, l.OwnerID, l.Status) {
		return nil, store.ErrNotFound
	}

	r := &models.Review{
		ID:        uuid.New(),
		ListingID: listingID,
		AuthorID:  ident.ID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		Status:    moderation.StatusPending,
	}

	if err := s.store.CreateReview(ctx, r); err != nil {
		return nil, err
	}

	monitoring.ReviewsCreated().Inc()
	s.log.Info().
		Str("review_id", r.ID.String()).
		Str("listing_id", listingID.String()).
		Str("author_id", ident.ID.String()).
		Msg("Review created")
	return r, nil
}

// ListForListing returns the reviews of a listing visible to the caller:
// approved ones for everyone, plus the caller's own in any status, plus
// everything for admins.
func (s *Service) ListForListing(ctx context.Context, ident identity.Identity, listingID uuid.UUID, page, pageSize int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !policy.CanSee(ident, l.OwnerID, l.Status) {
		return nil, store.ErrNotFound
	}

	f := store.ReviewFilter{ListingID: &listingID}
	if !ident.IsAdmin() {
		f.RestrictVisibility = true
		if !ident.IsAnonymous() {
			viewer := ident.ID
			f.Viewer = &viewer
		}
	}

	reviews, total, err := s.store.ListReviews(ctx, f, store.Page{Number: page, Size: pageSize})
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Reviews:  reviews,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Delete removes a review. Allowed for its author and for admins.
func (s *Service) Delete(ctx context.Context, ident identity.Identity, id uuid.UUID) error {
	err := s.store.DeleteReview(ctx, id, func(r *models.Review) error {
		return policy.Authorize(ident, policy.ActionDelete, r.AuthorID)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("review_id", id.String()).
		Str("actor_id", ident.ID.String()).
		Msg("Review deleted")
	return nil
}
