package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wanderhq/wanderlust/internal/cache"
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
	ErrInvalidInput = errors.New("invalid listing input")
)

// Service implements the listing operations of the marketplace: creation,
// visibility-filtered reads, owner edits with resubmission, cascade
// delete, and the like toggle.
type Service struct {
	store store.Store
	cache *cache.Cache
	log   zerolog.Logger
}

// NewService creates a listing service. cache may be nil.
func NewService(st store.Store, c *cache.Cache) *Service {
	return &Service{
		store: st,
		cache: c,
		log:   logging.NewLogger("listing"),
	}
}

// CreateListingInput is the validated creation payload. The caller never
// supplies status or owner; both are forced here.
type CreateListingInput struct {
	Title       string          `json:"title" binding:"required,min=1,max=200"`
	Description string          `json:"description" binding:"required"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Location    string          `json:"location" binding:"required"`
	Country     string          `json:"country" binding:"required"`
	State       string          `json:"state"`
	ImageURL    string          `json:"image_url"`
}

// UpdateListingInput carries the owner-editable content fields. Nil fields
// are left unchanged. Any accepted edit resets the listing to pending.
type UpdateListingInput struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Location    *string          `json:"location,omitempty"`
	Country     *string          `json:"country,omitempty"`
	State       *string          `json:"state,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
}

// ListFilter are the caller-facing query knobs; the visibility rules are
// applied on top of them and cannot be bypassed.
type ListFilter struct {
	Country string
	Search  string
	Status  *moderation.Status // honored for admins and owner-scoped queries only
	Mine    bool               // restrict to the caller's own listings
}

// ListResult is a paginated page of listings.
type ListResult struct {
	Listings   []models.Listing `json:"listings"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// ToggleLikeResult reports the caller's membership and the aggregate count
// after the toggle.
type ToggleLikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

func (in *CreateListingInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Country) == "" {
		return fmt.Errorf("%w: country is required", ErrInvalidInput)
	}
	return nil
}

// Create publishes a new listing in pending state, owned by the caller.
func (s *Service) Create(ctx context.Context, ident identity.Identity, in *CreateListingInput) (*models.Listing, error) {
	if err := policy.Authorize(ident, policy.ActionCreate, uuid.Nil); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	l := &models.Listing{
		ID:          uuid.New(),
		OwnerID:     ident.ID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Location:    in.Location,
		Country:     in.Country,
		State:       in.State,
		ImageURL:    in.ImageURL,
		Status:      moderation.StatusPending,
	}

	if err := s.store.CreateListing(ctx, l); err != nil {
		return nil, err
	}

	monitoring.ListingsCreated().Inc()
	s.log.Info().
		Str("listing_id", l.ID.String()).
		Str("owner_id", l.OwnerID.String()).
		Msg("Listing created")
	return l, nil
}

// Get retrieves a single listing. A listing the caller is not entitled to
// see is reported as not found.
func (s *Service) Get(ctx context.Context, ident identity.Identity, id uuid.UUID) (*models.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanSee(ident, l.OwnerID, l.Status) {
		return nil, store.ErrNotFound
	}
	return l, nil
}

// List returns a page of listings visible to the caller. Anonymous default
// queries are served from the cache when possible.
func (s *Service) List(ctx context.Context, ident identity.Identity, f ListFilter, page, pageSize int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	sf := store.ListingFilter{
		Country: f.Country,
		Search:  f.Search,
	}
	if f.Mine && !ident.IsAnonymous() {
		owner := ident.ID
		sf.OwnerID = &owner
	}
	if ident.IsAdmin() {
		sf.Status = f.Status
	} else {
		sf.RestrictVisibility = true
		if !ident.IsAnonymous() {
			viewer := ident.ID
			sf.Viewer = &viewer
			// An owner may narrow their own dashboard by status; for
			// everyone else the status knob would leak existence.
			if f.Status != nil && f.Mine {
				sf.Status = f.Status
			}
		}
	}

	cacheable := ident.IsAnonymous()
	cacheKey := fmt.Sprintf("country=%s:search=%s:page=%d:size=%d", f.Country, f.Search, page, pageSize)
	if cacheable {
		var cached ListResult
		if s.cache.GetListingPage(ctx, cacheKey, &cached) {
			monitoring.CacheHits().Inc()
			return &cached, nil
		}
		monitoring.CacheMisses().Inc()
	}

	listings, total, err := s.store.ListListings(ctx, sf, store.Page{Number: page, Size: pageSize})
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	result := &ListResult{
		Listings:   listings,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}

	if cacheable {
		s.cache.SetListingPage(ctx, cacheKey, result)
	}
	return result, nil
}

// Update applies an owner edit. Authorization runs against the same locked
// snapshot the mutation writes, and every accepted edit resubmits the
// listing for moderation.
func (s *Service) Update(ctx context.Context, ident identity.Identity, id uuid.UUID, in *UpdateListingInput) (*models.Listing, error) {
	l, err := s.store.UpdateListing(ctx, id, func(l *models.Listing) error {
		if err := policy.Authorize(ident, policy.ActionUpdate, l.OwnerID); err != nil {
			return err
		}

		if in.Title != nil {
			if strings.TrimSpace(*in.Title) == "" {
				return fmt.Errorf("%w: title is required", ErrInvalidInput)
			}
			l.Title = *in.Title
		}
		if in.Description != nil {
			if strings.TrimSpace(*in.Description) == "" {
				return fmt.Errorf("%w: description is required", ErrInvalidInput)
			}
			l.Description = *in.Description
		}
		if in.Price != nil {
			if in.Price.IsNegative() {
				return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
			}
			l.Price = *in.Price
		}
		if in.Location != nil {
			l.Location = *in.Location
		}
		if in.Country != nil {
			l.Country = *in.Country
		}
		if in.State != nil {
			l.State = *in.State
		}
		if in.ImageURL != nil {
			l.ImageURL = *in.ImageURL
		}

		l.Status = moderation.Resubmit(l.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateListings(ctx)
	s.log.Info().
		Str("listing_id", id.String()).
		Str("actor_id", ident.ID.String()).
		Msg("Listing updated, resubmitted for moderation")
	return l, nil
}

// Delete removes a listing and all of its reviews. Allowed for the owner
// and for admins, from any moderation state.
func (s *Service) Delete(ctx context.Context, ident identity.Identity, id uuid.UUID) error {
	err := s.store.DeleteListing(ctx, id, func(l *models.Listing) error {
		return policy.Authorize(ident, policy.ActionDelete, l.OwnerID)
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateListings(ctx)
	s.log.Info().
		Str("listing_id", id.String()).
		Str("actor_id", ident.ID.String()).
		Msg("Listing deleted")
	return nil
}

// ToggleLike flips the caller's like on a listing. The membership set and
// the counter move together in one atomic store operation.
func (s *Service) ToggleLike(ctx context.Context, ident identity.Identity, listingID uuid.UUID) (*ToggleLikeResult, error) {
	if err := policy.Authorize(ident, policy.ActionLike, uuid.Nil); err != nil {
		return nil, err
	}

	// Unapproved listings are invisible to outsiders, so they cannot be
	// liked by them either; the denial is indistinguishable from absence.
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !policy.CanSee(ident, l.OwnerID, l.Status) {
		return nil, store.ErrNotFound
	}

	liked, likeCount, err := s.store.ToggleLike(ctx, listingID, ident.ID)
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateListings(ctx)
	if liked {
		monitoring.LikeToggles().WithLabelValues("liked").Inc()
	} else {
		monitoring.LikeToggles().WithLabelValues("unliked").Inc()
	}
	return &ToggleLikeResult{Liked: liked, LikeCount: likeCount}, nil
}
