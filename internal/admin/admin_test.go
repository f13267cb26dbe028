package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wanderhq/wanderlust/internal/admin"
	"github.com/wanderhq/wanderlust/internal/identity"
	"github.com/wanderhq/wanderlust/internal/listing"
	"github.com/wanderhq/wanderlust/internal/models"
	"github.com/wanderhq/wanderlust/internal/moderation"
	"github.com/wanderhq/wanderlust/internal/policy"
	"github.com/wanderhq/wanderlust/internal/review"
	"github.com/wanderhq/wanderlust/internal/store"
)

func userIdentity() identity.Identity {
	return identity.Identity{ID: uuid.New(), Username: "mira", Role: models.RoleUser}
}

func adminIdentity() identity.Identity {
	return identity.Identity{ID: uuid.New(), Username: "root", Role: models.RoleAdmin}
}

func seedListing(t *testing.T, st store.Store, status moderation.Status) *models.Listing {
	t.Helper()
	l := &models.Listing{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Title:       "Cliffside cabin",
		Description: "A quiet cabin above the fjord",
		Price:       decimal.NewFromInt(120),
		Location:    "Flam",
		Country:     "Norway",
		Status:      status,
	}
	if err := st.CreateListing(context.Background(), l); err != nil {
		t.Fatalf("CreateListing() error = %v", err)
	}
	return l
}

func seedReview(t *testing.T, st store.Store, listingID uuid.UUID, status moderation.Status) *models.Review {
	t.Helper()
	r := &models.Review{
		ID:        uuid.New(),
		ListingID: listingID,
		AuthorID:  uuid.New(),
		Rating:    4,
		Comment:   "Worth the hike",
		Status:    status,
	}
	if err := st.CreateReview(context.Background(), r); err != nil {
		t.Fatalf("CreateReview() error = %v", err)
	}
	return r
}

func TestApproveListing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)
	l := seedListing(t, st, moderation.StatusPending)

	got, err := svc.ApproveListing(ctx, adminIdentity(), l.ID)
	if err != nil {
		t.Fatalf("ApproveListing() error = %v", err)
	}
	if got.Status != moderation.StatusApproved {
		t.Errorf("Status = %s, want approved", got.Status)
	}

	// Approving twice is an invalid transition
	if _, err := svc.ApproveListing(ctx, adminIdentity(), l.ID); !errors.Is(err, moderation.ErrInvalidTransition) {
		t.Fatalf("second approve error = %v, want ErrInvalidTransition", err)
	}
}

func TestApproveListing_NonAdminForbidden(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)
	l := seedListing(t, st, moderation.StatusPending)

	if _, err := svc.ApproveListing(ctx, userIdentity(), l.ID); !errors.Is(err, policy.ErrForbidden) {
		t.Fatalf("ApproveListing(user) error = %v, want ErrForbidden", err)
	}
	if _, err := svc.ApproveListing(ctx, identity.Anonymous, l.ID); !errors.Is(err, policy.ErrForbidden) {
		t.Fatalf("ApproveListing(anonymous) error = %v, want ErrForbidden", err)
	}

	got, err := st.GetListing(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if got.Status != moderation.StatusPending {
		t.Errorf("Status = %s, denied approve must not transition", got.Status)
	}
}

func TestRejectListing_TakedownFromApproved(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)
	l := seedListing(t, st, moderation.StatusApproved)

	got, err := svc.RejectListing(ctx, adminIdentity(), l.ID)
	if err != nil {
		t.Fatalf("RejectListing() error = %v", err)
	}
	if got.Status != moderation.StatusRejected {
		t.Errorf("Status = %s, want rejected", got.Status)
	}

	// Rejected is terminal for admin actions
	if _, err := svc.ApproveListing(ctx, adminIdentity(), l.ID); !errors.Is(err, moderation.ErrInvalidTransition) {
		t.Fatalf("approve after reject error = %v, want ErrInvalidTransition", err)
	}
}

func TestReviewTransitions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)
	l := seedListing(t, st, moderation.StatusApproved)
	r := seedReview(t, st, l.ID, moderation.StatusPending)

	got, err := svc.ApproveReview(ctx, adminIdentity(), r.ID)
	if err != nil {
		t.Fatalf("ApproveReview() error = %v", err)
	}
	if got.Status != moderation.StatusApproved {
		t.Errorf("Status = %s, want approved", got.Status)
	}

	got, err = svc.RejectReview(ctx, adminIdentity(), r.ID)
	if err != nil {
		t.Fatalf("RejectReview() error = %v", err)
	}
	if got.Status != moderation.StatusRejected {
		t.Errorf("Status = %s, want rejected", got.Status)
	}
}

func TestBulkTransition_FilterBased(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)

	var pending []*models.Listing
	for i := 0; i < 3; i++ {
		pending = append(pending, seedListing(t, st, moderation.StatusPending))
	}
	rejected := seedListing(t, st, moderation.StatusRejected)

	result, err := svc.BulkTransition(ctx, adminIdentity(),
		admin.BulkFilter{Kind: admin.KindListing, Status: moderation.StatusPending},
		moderation.StatusApproved)
	if err != nil {
		t.Fatalf("BulkTransition() error = %v", err)
	}

	if len(result.Succeeded) != 3 {
		t.Fatalf("Succeeded = %d, want 3", len(result.Succeeded))
	}
	if len(result.Failed) != 0 {
		t.Fatalf("Failed = %v, want none", result.Failed)
	}

	for _, l := range pending {
		got, err := st.GetListing(ctx, l.ID)
		if err != nil {
			t.Fatalf("GetListing() error = %v", err)
		}
		if got.Status != moderation.StatusApproved {
			t.Errorf("listing %s status = %s, want approved", l.ID, got.Status)
		}
	}

	// The rejected listing did not match the filter and is untouched
	got, err := st.GetListing(ctx, rejected.ID)
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if got.Status != moderation.StatusRejected {
		t.Errorf("unmatched listing status = %s, want rejected", got.Status)
	}
}

func TestBulkTransitionIDs_ReportsPerItemFailures(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)

	a := seedListing(t, st, moderation.StatusPending)
	b := seedListing(t, st, moderation.StatusPending)
	c := seedListing(t, st, moderation.StatusPending)
	ids := []uuid.UUID{a.ID, b.ID, c.ID}

	// One of the snapshot ids disappears before the batch runs, as when a
	// delete races a bulk approve.
	if err := st.DeleteListing(ctx, b.ID, func(*models.Listing) error { return nil }); err != nil {
		t.Fatalf("DeleteListing() error = %v", err)
	}

	result, err := svc.BulkTransitionIDs(ctx, adminIdentity(), admin.KindListing, ids, moderation.StatusApproved)
	if err != nil {
		t.Fatalf("BulkTransitionIDs() error = %v", err)
	}

	if len(result.Succeeded) != 2 {
		t.Fatalf("Succeeded = %v, want the two surviving listings", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != b.ID {
		t.Fatalf("Failed = %v, want exactly the deleted listing", result.Failed)
	}

	for _, id := range []uuid.UUID{a.ID, c.ID} {
		got, err := st.GetListing(ctx, id)
		if err != nil {
			t.Fatalf("GetListing() error = %v", err)
		}
		if got.Status != moderation.StatusApproved {
			t.Errorf("listing %s status = %s, want approved", id, got.Status)
		}
	}
}

func TestBulkTransition_MixedStates(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)

	pending := seedListing(t, st, moderation.StatusPending)
	alreadyApproved := seedListing(t, st, moderation.StatusApproved)

	result, err := svc.BulkTransitionIDs(ctx, adminIdentity(), admin.KindListing,
		[]uuid.UUID{pending.ID, alreadyApproved.ID}, moderation.StatusApproved)
	if err != nil {
		t.Fatalf("BulkTransitionIDs() error = %v", err)
	}

	if len(result.Succeeded) != 1 || result.Succeeded[0] != pending.ID {
		t.Fatalf("Succeeded = %v, want only the pending listing", result.Succeeded)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != alreadyApproved.ID {
		t.Fatalf("Failed = %v, want the already-approved listing", result.Failed)
	}
}

func TestBulkTransition_NonAdminForbidden(t *testing.T) {
	st := store.NewMemory()
	svc := admin.NewService(st, nil)

	_, err := svc.BulkTransition(context.Background(), userIdentity(),
		admin.BulkFilter{Kind: admin.KindListing, Status: moderation.StatusPending},
		moderation.StatusApproved)
	if !errors.Is(err, policy.ErrForbidden) {
		t.Fatalf("BulkTransition(user) error = %v, want ErrForbidden", err)
	}
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)

	l := seedListing(t, st, moderation.StatusApproved)
	seedListing(t, st, moderation.StatusPending)
	seedListing(t, st, moderation.StatusPending)
	seedListing(t, st, moderation.StatusRejected)
	seedReview(t, st, l.ID, moderation.StatusPending)
	seedReview(t, st, l.ID, moderation.StatusApproved)

	stats, err := svc.GetStats(ctx, adminIdentity())
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}

	if stats.Listings.Total != 4 {
		t.Errorf("Listings.Total = %d, want 4", stats.Listings.Total)
	}
	if stats.Listings.Pending != 2 {
		t.Errorf("Listings.Pending = %d, want 2", stats.Listings.Pending)
	}
	if stats.Listings.Approved != 1 {
		t.Errorf("Listings.Approved = %d, want 1", stats.Listings.Approved)
	}
	if stats.Listings.Rejected != 1 {
		t.Errorf("Listings.Rejected = %d, want 1", stats.Listings.Rejected)
	}
	if stats.Reviews.Total != 2 {
		t.Errorf("Reviews.Total = %d, want 2", stats.Reviews.Total)
	}
	if stats.Reviews.Pending != 1 {
		t.Errorf("Reviews.Pending = %d, want 1", stats.Reviews.Pending)
	}

	if _, err := svc.GetStats(ctx, userIdentity()); !errors.Is(err, policy.ErrForbidden) {
		t.Fatalf("GetStats(user) error = %v, want ErrForbidden", err)
	}
}

func TestPendingQueue(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := admin.NewService(st, nil)

	l := seedListing(t, st, moderation.StatusApproved)
	seedListing(t, st, moderation.StatusPending)
	seedReview(t, st, l.ID, moderation.StatusPending)
	seedReview(t, st, l.ID, moderation.StatusApproved)

	queue, err := svc.PendingQueue(ctx, adminIdentity(), 50)
	if err != nil {
		t.Fatalf("PendingQueue() error = %v", err)
	}
	if len(queue.Listings) != 1 {
		t.Errorf("queue listings = %d, want 1", len(queue.Listings))
	}
	if len(queue.Reviews) != 1 {
		t.Errorf("queue reviews = %d, want 1", len(queue.Reviews))
	}

	if _, err := svc.PendingQueue(ctx, userIdentity(), 50); !errors.Is(err, policy.ErrForbidden) {
		t.Fatalf("PendingQueue(user) error = %v, want ErrForbidden", err)
	}
}

// Full lifecycle: an owner's edit after approval sends the listing back to
// moderation, and an outsider loses sight of it until it is approved again.
func TestModerationLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	adminSvc := admin.NewService(st, nil)
	listingSvc := listing.NewService(st, nil)
	reviewSvc := review.NewService(st)

	owner := userIdentity()
	visitor := userIdentity()
	moderator := adminIdentity()

	l, err := listingSvc.Create(ctx, owner, &listing.CreateListingInput{
		Title:       "Cliffside cabin",
		Description: "A quiet cabin above the fjord",
		Price:       decimal.NewFromInt(120),
		Location:    "Flam",
		Country:     "Norway",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := listingSvc.Get(ctx, visitor, l.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("visitor sees pending listing: %v", err)
	}

	if _, err := adminSvc.ApproveListing(ctx, moderator, l.ID); err != nil {
		t.Fatalf("ApproveListing() error = %v", err)
	}
	if _, err := listingSvc.Get(ctx, visitor, l.ID); err != nil {
		t.Fatalf("visitor cannot see approved listing: %v", err)
	}

	// The visitor reviews the now-visible listing
	r, err := reviewSvc.Create(ctx, visitor, l.ID, &review.CreateReviewInput{Rating: 5, Comment: "Stunning"})
	if err != nil {
		t.Fatalf("review Create() error = %v", err)
	}
	if _, err := adminSvc.ApproveReview(ctx, moderator, r.ID); err != nil {
		t.Fatalf("ApproveReview() error = %v", err)
	}

	// An owner edit resubmits and hides the listing again
	title := "Cliffside cabin with sauna"
	if _, err := listingSvc.Update(ctx, owner, l.ID, &listing.UpdateListingInput{Title: &title}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := listingSvc.Get(ctx, visitor, l.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("visitor sees resubmitted listing: %v", err)
	}

	// Approving the resubmission restores visibility
	if _, err := adminSvc.ApproveListing(ctx, moderator, l.ID); err != nil {
		t.Fatalf("re-approve error = %v", err)
	}
	got, err := listingSvc.Get(ctx, visitor, l.ID)
	if err != nil {
		t.Fatalf("Get() after re-approve error = %v", err)
	}
	if got.Title != title {
		t.Errorf("Title = %q, want the edited title", got.Title)
	}
}
