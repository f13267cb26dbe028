// Package admin implements the moderation actions reserved for the admin
// role: single-entity transitions, best-effort bulk transitions, and the
// dashboard statistics.
package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wanderhq/wanderlust/internal/cache"
	"github.com/wanderhq/wanderlust/internal/identity"
	"github.com/wanderhq/wanderlust/internal/logging"
	"github.com/wanderhq/wanderlust/internal/models"
	"github.com/wanderhq/wanderlust/internal/moderation"
	"github.com/wanderhq/wanderlust/internal/monitoring"
	"github.com/wanderhq/wanderlust/internal/policy"
	"github.com/wanderhq/wanderlust/internal/store"
)

// EntityKind selects which collection a bulk operation targets.
type EntityKind string

const (
	KindListing EntityKind = "listing"
	KindReview  EntityKind = "review"
)

// Service implements the admin moderation operations.
type Service struct {
	store store.Store
	cache *cache.Cache
	log   zerolog.Logger
}

// NewService creates an admin service. cache may be nil.
func NewService(st store.Store, c *cache.Cache) *Service {
	return &Service{
		store: st,
		cache: c,
		log:   logging.NewLogger("admin"),
	}
}

// BulkFilter selects the entities a bulk transition operates on.
type BulkFilter struct {
	Kind    EntityKind        `json:"kind"`
	Status  moderation.Status `json:"status"`
	Country string            `json:"country,omitempty"` // listings only
}

// BulkFailure records one entity a bulk operation could not transition.
type BulkFailure struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// BulkResult is the per-item outcome report of a bulk transition.
type BulkResult struct {
	Succeeded []uuid.UUID   `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// Stats is the moderation dashboard summary.
type Stats struct {
	Listings struct {
		Total    int64 `json:"total"`
		Pending  int64 `json:"pending"`
		Approved int64 `json:"approved"`
		Rejected int64 `json:"rejected"`
	} `json:"listings"`
	Reviews struct {
		Total   int64 `json:"total"`
		Pending int64 `json:"pending"`
	} `json:"reviews"`
}

// ApproveListing transitions a pending listing to approved.
func (s *Service) ApproveListing(ctx context.Context, ident identity.Identity, id uuid.UUID) (*models.Listing, error) {
	return s.transitionListing(ctx, ident, id, moderation.StatusApproved)
}

// RejectListing transitions a pending or approved listing to rejected.
func (s *Service) RejectListing(ctx context.Context, ident identity.Identity, id uuid.UUID) (*models.Listing, error) {
	return s.transitionListing(ctx, ident, id, moderation.StatusRejected)
}

func (s *Service) transitionListing(ctx context.Context, ident identity.Identity, id uuid.UUID, target moderation.Status) (*models.Listing, error) {
	if err := policy.Authorize(ident, actionFor(target), uuid.Nil); err != nil {
		return nil, err
	}

	l, err := s.store.UpdateListing(ctx, id, func(l *models.Listing) error {
		next, err := moderation.Apply(l.Status, target)
		if err != nil {
			return err
		}
		l.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateListings(ctx)
	monitoring.ModerationTransitions().WithLabelValues(string(KindListing), string(target)).Inc()
	logging.LogModeration(ident.ID.String(), string(KindListing), id.String(), string(target))
	return l, nil
}

// ApproveReview transitions a pending review to approved.
func (s *Service) ApproveReview(ctx context.Context, ident identity.Identity, id uuid.UUID) (*models.Review, error) {
	return s.transitionReview(ctx, ident, id, moderation.StatusApproved)
}

// RejectReview transitions a pending or approved review to rejected.
func (s *Service) RejectReview(ctx context.Context, ident identity.Identity, id uuid.UUID) (*models.Review, error) {
	return s.transitionReview(ctx, ident, id, moderation.StatusRejected)
}

func (s *Service) transitionReview(ctx context.Context, ident identity.Identity, id uuid.UUID, target moderation.Status) (*models.Review, error) {
	if err := policy.Authorize(ident, actionFor(target), uuid.Nil); err != nil {
		return nil, err
	}

	r, err := s.store.UpdateReview(ctx, id, func(r *models.Review) error {
		next, err := moderation.Apply(r.Status, target)
		if err != nil {
			return err
		}
		r.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.ModerationTransitions().WithLabelValues(string(KindReview), string(target)).Inc()
	logging.LogModeration(ident.ID.String(), string(KindReview), id.String(), string(target))
	return r, nil
}

// BulkTransition applies target to every entity matching the filter. The
// batch is a best-effort fan-out: each item transitions atomically on its
// own, and a failed item is reported instead of aborting the rest.
func (s *Service) BulkTransition(ctx context.Context, ident identity.Identity, f BulkFilter, target moderation.Status) (*BulkResult, error) {
	if err := policy.Authorize(ident, policy.ActionBulk, uuid.Nil); err != nil {
		return nil, err
	}

	ids, err := s.matchIDs(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.bulkTransitionIDs(ctx, ident, f.Kind, ids, target)
}

// BulkTransitionIDs applies target to an explicit id snapshot. Entities
// that disappeared since the snapshot was taken are reported as failures.
func (s *Service) BulkTransitionIDs(ctx context.Context, ident identity.Identity, kind EntityKind, ids []uuid.UUID, target moderation.Status) (*BulkResult, error) {
	if err := policy.Authorize(ident, policy.ActionBulk, uuid.Nil); err != nil {
		return nil, err
	}
	return s.bulkTransitionIDs(ctx, ident, kind, ids, target)
}

func (s *Service) matchIDs(ctx context.Context, f BulkFilter) ([]uuid.UUID, error) {
	status := f.Status
	var ids []uuid.UUID

	switch f.Kind {
	case KindReview:
		reviews, _, err := s.store.ListReviews(ctx,
			store.ReviewFilter{Status: &status},
			store.Page{Number: 1, Size: maxBulkBatch})
		if err != nil {
			return nil, err
		}
		for _, r := range reviews {
			ids = append(ids, r.ID)
		}
	default:
		listings, _, err := s.store.ListListings(ctx,
			store.ListingFilter{Status: &status, Country: f.Country},
			store.Page{Number: 1, Size: maxBulkBatch})
		if err != nil {
			return nil, err
		}
		for _, l := range listings {
			ids = append(ids, l.ID)
		}
	}
	return ids, nil
}

// maxBulkBatch caps how many entities a single bulk call processes.
const maxBulkBatch = 500

func (s *Service) bulkTransitionIDs(ctx context.Context, ident identity.Identity, kind EntityKind, ids []uuid.UUID, target moderation.Status) (*BulkResult, error) {
	result := &BulkResult{}

	for _, id := range ids {
		var err error
		switch kind {
		case KindReview:
			_, err = s.store.UpdateReview(ctx, id, func(r *models.Review) error {
				next, terr := moderation.Apply(r.Status, target)
				if terr != nil {
					return terr
				}
				r.Status = next
				return nil
			})
		default:
			_, err = s.store.UpdateListing(ctx, id, func(l *models.Listing) error {
				next, terr := moderation.Apply(l.Status, target)
				if terr != nil {
					return terr
				}
				l.Status = next
				return nil
			})
		}

		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: err.Error()})
			monitoring.BulkItems().WithLabelValues("failed").Inc()
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
		monitoring.BulkItems().WithLabelValues("succeeded").Inc()
	}

	if kind != KindReview {
		s.cache.InvalidateListings(ctx)
	}
	s.log.Info().
		Str("admin_id", ident.ID.String()).
		Str("kind", string(kind)).
		Str("target", string(target)).
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msg("Bulk transition finished")
	return result, nil
}

// GetStats returns the moderation dashboard counters.
func (s *Service) GetStats(ctx context.Context, ident identity.Identity) (*Stats, error) {
	if err := policy.Authorize(ident, policy.ActionBulk, uuid.Nil); err != nil {
		return nil, err
	}

	var stats Stats
	var err error

	if stats.Listings.Total, err = s.store.CountListings(ctx, store.ListingFilter{}); err != nil {
		return nil, err
	}
	for _, st := range []struct {
		status moderation.Status
		dest   *int64
	}{
		{moderation.StatusPending, &stats.Listings.Pending},
		{moderation.StatusApproved, &stats.Listings.Approved},
		{moderation.StatusRejected, &stats.Listings.Rejected},
	} {
		status := st.status
		if *st.dest, err = s.store.CountListings(ctx, store.ListingFilter{Status: &status}); err != nil {
			return nil, err
		}
	}

	if stats.Reviews.Total, err = s.store.CountReviews(ctx, store.ReviewFilter{}); err != nil {
		return nil, err
	}
	pending := moderation.StatusPending
	if stats.Reviews.Pending, err = s.store.CountReviews(ctx, store.ReviewFilter{Status: &pending}); err != nil {
		return nil, err
	}

	return &stats, nil
}

// Queue is a page of entities awaiting moderation.
type Queue struct {
	Listings []models.Listing `json:"listings"`
	Reviews  []models.Review  `json:"reviews"`
}

// PendingQueue returns the oldest pending listings and reviews, up to
// limit of each, for the moderation dashboard.
func (s *Service) PendingQueue(ctx context.Context, ident identity.Identity, limit int) (*Queue, error) {
	if err := policy.Authorize(ident, policy.ActionBulk, uuid.Nil); err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxBulkBatch {
		limit = 50
	}

	pending := moderation.StatusPending
	page := store.Page{Number: 1, Size: limit}

	listings, _, err := s.store.ListListings(ctx, store.ListingFilter{Status: &pending}, page)
	if err != nil {
		return nil, err
	}
	reviews, _, err := s.store.ListReviews(ctx, store.ReviewFilter{Status: &pending}, page)
	if err != nil {
		return nil, err
	}

	return &Queue{Listings: listings, Reviews: reviews}, nil
}

func actionFor(target moderation.Status) policy.Action {
	if target == moderation.StatusRejected {
		return policy.ActionReject
	}
	return policy.ActionApprove
}
