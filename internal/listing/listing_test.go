package listing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wanderhq/wanderlust/internal/identity"
	"github.com/wanderhq/wanderlust/internal/listing"
	"github.com/wanderhq/wanderlust/internal/models"
	"github.com/wanderhq/wanderlust/internal/moderation"
	"github.com/wanderhq/wanderlust/internal/policy"
	"github.com/wanderhq/wanderlust/internal/store"
)

func newService() (*listing.Service, store.Store) {
	st := store.NewMemory()
	return listing.NewService(st, nil), st
}

func userIdentity() identity.Identity {
	return identity.Identity{ID: uuid.New(), Username: "mira", Role: models.RoleUser}
}

func adminIdentity() identity.Identity {
	return identity.Identity{ID: uuid.New(), Username: "root", Role: models.RoleAdmin}
}

func validInput() *listing.CreateListingInput {
	return &listing.CreateListingInput{
		Title:       "Cliffside cabin",
		Description: "A quiet cabin above the fjord",
		Price:       decimal.NewFromInt(120),
		Location:    "Flam",
		Country:     "Norway",
	}
}

func TestCreate_StartsPending(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	owner := userIdentity()

	l, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if l.Status != moderation.StatusPending {
		t.Errorf("Status = %s, want pending", l.Status)
	}
	if l.OwnerID != owner.ID {
		t.Errorf("OwnerID = %s, want caller id %s", l.OwnerID, owner.ID)
	}
}

func TestCreate_RequiresAuthentication(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Create(context.Background(), identity.Anonymous, validInput())
	if !errors.Is(err, policy.ErrUnauthenticated) {
		t.Fatalf("Create(anonymous) error = %v, want ErrUnauthenticated", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	owner := userIdentity()

	tests := []struct {
		name   string
		mutate func(*listing.CreateListingInput)
	}{
		{"empty title", func(in *listing.CreateListingInput) { in.Title = "  " }},
		{"empty description", func(in *listing.CreateListingInput) { in.Description = "" }},
		{"negative price", func(in *listing.CreateListingInput) { in.Price = decimal.NewFromInt(-1) }},
		{"empty location", func(in *listing.CreateListingInput) { in.Location = "" }},
		{"empty country", func(in *listing.CreateListingInput) { in.Country = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)
			if _, err := svc.Create(ctx, owner, in); !errors.Is(err, listing.ErrInvalidInput) {
				t.Errorf("Create() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestGet_HidesUnapprovedFromOutsiders(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	owner := userIdentity()

	l, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The stranger and the anonymous visitor both get not-found, so a
	// pending listing cannot be distinguished from a missing one.
	if _, err := svc.Get(ctx, userIdentity(), l.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(stranger) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, identity.Anonymous, l.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(anonymous) error = %v, want ErrNotFound", err)
	}

	// The owner and admins see it
	if _, err := svc.Get(ctx, owner, l.ID); err != nil {
		t.Errorf("Get(owner) error = %v", err)
	}
	if _, err := svc.Get(ctx, adminIdentity(), l.ID); err != nil {
		t.Errorf("Get(admin) error = %v", err)
	}
}

func TestUpdate_OwnerEditResubmits(t *testing.T) {
	ctx := context.Background()
	svc, st := newService()
	owner := userIdentity()

	l, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Approve out of band, then edit
	if _, err := st.UpdateListing(ctx, l.ID, func(cur *models.Listing) error {
		cur.Status = moderation.StatusApproved
		return nil
	}); err != nil {
		t.Fatalf("UpdateListing() error = %v", err)
	}

	title := "Cliffside cabin with sauna"
	updated, err := svc.Update(ctx, owner, l.ID, &listing.UpdateListingInput{Title: &title})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Title != title {
		t.Errorf("Title = %q, want %q", updated.Title, title)
	}
	if updated.Status != moderation.StatusPending {
		t.Errorf("Status after edit = %s, want pending", updated.Status)
	}
}

func TestUpdate_RejectedEditResubmits(t *testing.T) {
	ctx := context.Background()
	svc, st := newService()
	owner := userIdentity()

	l, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := st.UpdateListing(ctx, l.ID, func(cur *models.Listing) error {
		cur.Status = moderation.StatusRejected
		return nil
	}); err != nil {
		t.Fatalf("UpdateListing() error = %v", err)
	}

	desc := "Rewritten after feedback"
	updated, err := svc.Update(ctx, owner, l.ID, &listing.UpdateListingInput{Description: &desc})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Status != moderation.StatusPending {
		t.Errorf("Status after rejected edit = %s, want pending", updated.Status)
	}
}

func TestUpdate_NonOwnerDenied(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	owner := userIdentity()

	l, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	title := "hijacked"
	_, err = svc.Update(ctx, userIdentity(), l.ID, &listing.UpdateListingInput{Title: &title})
	if !errors.Is(err, policy.ErrNotOwner) {
		t.Fatalf("Update(stranger) error = %v, want ErrNotOwner", err)
	}

	got, err := svc.Get(ctx, owner, l.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Cliffside cabin" {
		t.Errorf("Title = %q, denied update must not write", got.Title)
	}
}

func TestUpdate_InvalidEditKeepsStatus(t *testing.T) {
	ctx := context.Background()
	svc, st := newService()
	owner := userIdentity()

	l, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := st.UpdateListing(ctx, l.ID, func(cur *models.Listing) error {
		cur.Status = moderation.StatusApproved
		return nil
	}); err != nil {
		t.Fatalf("UpdateListing() error = %v", err)
	}

	// A rejected edit must not resubmit
	empty := ""
	if _, err := svc.Update(ctx, owner, l.ID, &listing.UpdateListingInput{Title: &empty}); !errors.Is(err, listing.ErrInvalidInput) {
		t.Fatalf("Update(empty title) error = %v, want ErrInvalidInput", err)
	}

	got, err := svc.Get(ctx, owner, l.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != moderation.StatusApproved {
		t.Errorf("Status = %s, failed edit must not change status", got.Status)
	}
}

func TestDelete_OwnerAndAdminOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()
	owner := userIdentity()

	l, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, userIdentity(), l.ID); !errors.Is(err, policy.ErrNotOwner) {
		t.Fatalf("Delete(stranger) error = %v, want ErrNotOwner", err)
	}
	if err := svc.Delete(ctx, owner, l.ID); err != nil {
		t.Fatalf("Delete(owner) error = %v", err)
	}

	// Admins may delete regardless of state
	l2, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, adminIdentity(), l2.ID); err != nil {
		t.Fatalf("Delete(admin) error = %v", err)
	}
}

func TestList_VisibilityScopes(t *testing.T) {
	ctx := context.Background()
	svc, st := newService()
	owner := userIdentity()
	stranger := userIdentity()

	pending, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	approved, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := st.UpdateListing(ctx, approved.ID, func(cur *models.Listing) error {
		cur.Status = moderation.StatusApproved
		return nil
	}); err != nil {
		t.Fatalf("UpdateListing() error = %v", err)
	}

	// Anonymous browse: only the approved listing
	result, err := svc.List(ctx, identity.Anonymous, listing.ListFilter{}, 1, 20)
	if err != nil {
		t.Fatalf("List(anonymous) error = %v", err)
	}
	if result.Total != 1 || result.Listings[0].ID != approved.ID {
		t.Fatalf("anonymous browse total = %d, want only approved listing", result.Total)
	}

	// A stranger sees the same page
	result, err = svc.List(ctx, stranger, listing.ListFilter{}, 1, 20)
	if err != nil {
		t.Fatalf("List(stranger) error = %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("stranger browse total = %d, want 1", result.Total)
	}

	// The owner sees both of their listings
	result, err = svc.List(ctx, owner, listing.ListFilter{}, 1, 20)
	if err != nil {
		t.Fatalf("List(owner) error = %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("owner browse total = %d, want 2", result.Total)
	}

	// Admin can filter by status across all owners
	status := moderation.StatusPending
	result, err = svc.List(ctx, adminIdentity(), listing.ListFilter{Status: &status}, 1, 20)
	if err != nil {
		t.Fatalf("List(admin) error = %v", err)
	}
	if result.Total != 1 || result.Listings[0].ID != pending.ID {
		t.Fatalf("admin pending filter total = %d, want the pending listing", result.Total)
	}
}

func TestList_ClampsPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	result, err := svc.List(ctx, identity.Anonymous, listing.ListFilter{}, -3, 5000)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Page != 1 {
		t.Errorf("Page = %d, want clamped to 1", result.Page)
	}
	if result.PageSize != 20 {
		t.Errorf("PageSize = %d, want clamped to 20", result.PageSize)
	}
}

func TestToggleLike(t *testing.T) {
	ctx := context.Background()
	svc, st := newService()
	owner := userIdentity()
	liker := userIdentity()

	l, err := svc.Create(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Anonymous callers cannot like
	if _, err := svc.ToggleLike(ctx, identity.Anonymous, l.ID); !errors.Is(err, policy.ErrUnauthenticated) {
		t.Fatalf("ToggleLike(anonymous) error = %v, want ErrUnauthenticated", err)
	}

	// A pending listing is unlikeable by outsiders and reads as absent
	if _, err := svc.ToggleLike(ctx, liker, l.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("ToggleLike(pending, stranger) error = %v, want ErrNotFound", err)
	}

	if _, err := st.UpdateListing(ctx, l.ID, func(cur *models.Listing) error {
		cur.Status = moderation.StatusApproved
		return nil
	}); err != nil {
		t.Fatalf("UpdateListing() error = %v", err)
	}

	res, err := svc.ToggleLike(ctx, liker, l.ID)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if !res.Liked || res.LikeCount != 1 {
		t.Fatalf("first toggle = (%v, %d), want (true, 1)", res.Liked, res.LikeCount)
	}

	res, err = svc.ToggleLike(ctx, liker, l.ID)
	if err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	if res.Liked || res.LikeCount != 0 {
		t.Fatalf("second toggle = (%v, %d), want (false, 0)", res.Liked, res.LikeCount)
	}
}
