package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wanderhq/wanderlust/internal/models"
)

// Memory is an in-process Store with the same atomic contract as the
// Postgres implementation: a single mutex plays the role of the row lock,
// so every mutation observes and produces a consistent snapshot.
type Memory struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*models.Listing
	likes    map[uuid.UUID]map[uuid.UUID]time.Time // listing -> user -> liked at
	reviews  map[uuid.UUID]*models.Review
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		listings: make(map[uuid.UUID]*models.Listing),
		likes:    make(map[uuid.UUID]map[uuid.UUID]time.Time),
		reviews:  make(map[uuid.UUID]*models.Review),
	}
}

func (m *Memory) snapshotListing(l *models.Listing) *models.Listing {
	cp := *l
	cp.LikedBy = nil
	cp.Reviews = nil

	type likeAt struct {
		user uuid.UUID
		at   time.Time
	}
	var likes []likeAt
	for uid, at := range m.likes[l.ID] {
		likes = append(likes, likeAt{uid, at})
	}
	sort.Slice(likes, func(i, j int) bool { return likes[i].at.Before(likes[j].at) })
	for _, lk := range likes {
		cp.LikedBy = append(cp.LikedBy, lk.user)
	}

	var revs []*models.Review
	for _, r := range m.reviews {
		if r.ListingID == l.ID {
			revs = append(revs, r)
		}
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i].CreatedAt.Before(revs[j].CreatedAt) })
	for _, r := range revs {
		cp.Reviews = append(cp.Reviews, r.ID)
	}
	return &cp
}

// CreateListing inserts a new listing.
func (m *Memory) CreateListing(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now
	cp := *l
	m.listings[l.ID] = &cp
	return nil
}

// GetListing retrieves a listing with its like set and review ids.
func (m *Memory) GetListing(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.snapshotListing(l), nil
}

func matchListing(l *models.Listing, f ListingFilter) bool {
	if f.Status != nil && l.Status != *f.Status {
		return false
	}
	if f.OwnerID != nil && l.OwnerID != *f.OwnerID {
		return false
	}
	if f.Country != "" && !strings.EqualFold(l.Country, f.Country) {
		return false
	}
	if f.Search != "" && !containsFold(l.Title, f.Search) && !containsFold(l.Location, f.Search) {
		return false
	}
	if f.RestrictVisibility && !l.Status.Visible() {
		if f.Viewer == nil || l.OwnerID != *f.Viewer {
			return false
		}
	}
	return true
}

// ListListings returns a page of listings matching the filter, newest
// first, plus the total match count.
func (m *Memory) ListListings(_ context.Context, f ListingFilter, p Page) ([]models.Listing, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Listing
	for _, l := range m.listings {
		if matchListing(l, f) {
			matched = append(matched, l)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := p.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + p.Size
	if end > len(matched) {
		end = len(matched)
	}

	var page []models.Listing
	for _, l := range matched[start:end] {
		page = append(page, *m.snapshotListing(l))
	}
	return page, total, nil
}

// CountListings returns the number of listings matching the filter.
func (m *Memory) CountListings(_ context.Context, f ListingFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, l := range m.listings {
		if matchListing(l, f) {
			total++
		}
	}
	return total, nil
}

// UpdateListing applies mutate to the stored listing under the lock.
func (m *Memory) UpdateListing(_ context.Context, id uuid.UUID, mutate func(*models.Listing) error) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return nil, ErrNotFound
	}

	work := m.snapshotListing(l)
	if err := mutate(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = time.Now()

	cp := *work
	cp.LikedBy = nil
	cp.Reviews = nil
	m.listings[id] = &cp
	return work, nil
}

// DeleteListing removes the listing, its likes and its reviews.
func (m *Memory) DeleteListing(_ context.Context, id uuid.UUID, guard func(*models.Listing) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return ErrNotFound
	}
	if guard != nil {
		if err := guard(m.snapshotListing(l)); err != nil {
			return err
		}
	}

	for rid, r := range m.reviews {
		if r.ListingID == id {
			delete(m.reviews, rid)
		}
	}
	delete(m.likes, id)
	delete(m.listings, id)
	return nil
}

// ToggleLike flips membership and counter together under the lock.
func (m *Memory) ToggleLike(_ context.Context, listingID, userID uuid.UUID) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[listingID]
	if !ok {
		return false, 0, ErrNotFound
	}

	set := m.likes[listingID]
	if set == nil {
		set = make(map[uuid.UUID]time.Time)
		m.likes[listingID] = set
	}

	var liked bool
	if _, has := set[userID]; has {
		delete(set, userID)
	} else {
		set[userID] = time.Now()
		liked = true
	}

	l.LikeCount = len(set)
	l.UpdatedAt = time.Now()
	return liked, l.LikeCount, nil
}

// CreateReview inserts a new review.
func (m *Memory) CreateReview(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.CreatedAt = time.Now()
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

// GetReview retrieves a review by id.
func (m *Memory) GetReview(_ context.Context, id uuid.UUID) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func matchReview(r *models.Review, f ReviewFilter) bool {
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.ListingID != nil && r.ListingID != *f.ListingID {
		return false
	}
	if f.AuthorID != nil && r.AuthorID != *f.AuthorID {
		return false
	}
	if f.RestrictVisibility && !r.Status.Visible() {
		if f.Viewer == nil || r.AuthorID != *f.Viewer {
			return false
		}
	}
	return true
}

// ListReviews returns a page of reviews in insertion order plus the total
// match count.
func (m *Memory) ListReviews(_ context.Context, f ReviewFilter, p Page) ([]models.Review, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.Review
	for _, r := range m.reviews {
		if matchReview(r, f) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := p.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + p.Size
	if end > len(matched) {
		end = len(matched)
	}

	var page []models.Review
	for _, r := range matched[start:end] {
		page = append(page, *r)
	}
	return page, total, nil
}

// CountReviews returns the number of reviews matching the filter.
func (m *Memory) CountReviews(_ context.Context, f ReviewFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, r := range m.reviews {
		if matchReview(r, f) {
			total++
		}
	}
	return total, nil
}

// UpdateReview applies mutate to the stored review under the lock.
func (m *Memory) UpdateReview(_ context.Context, id uuid.UUID, mutate func(*models.Review) error) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}

	work := *r
	if err := mutate(&work); err != nil {
		return nil, err
	}
	cp := work
	m.reviews[id] = &cp
	return &work, nil
}

// DeleteReview removes a review after the guard accepts the snapshot.
func (m *Memory) DeleteReview(_ context.Context, id uuid.UUID, guard func(*models.Review) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reviews[id]
	if !ok {
		return ErrNotFound
	}
	if guard != nil {
		cp := *r
		if err := guard(&cp); err != nil {
			return err
		}
	}
	delete(m.reviews, id)
	return nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
