package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wanderhq/wanderlust/internal/models"
)

// Postgres implements Store on a pgx connection pool. Per-entity atomicity
// comes from row-level locks: every mutation runs in a transaction that
// takes SELECT ... FOR UPDATE on the entity row first.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

const listingColumns = `id, owner_id, title, description, price, location, country, state, image_url, status, like_count, created_at, updated_at`

func scanListing(row pgx.Row, l *models.Listing) error {
	return row.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Price,
		&l.Location, &l.Country, &l.State, &l.ImageURL, &l.Status,
		&l.LikeCount, &l.CreatedAt, &l.UpdatedAt,
	)
}

// CreateListing inserts a new listing.
func (s *Postgres) CreateListing(ctx context.Context, l *models.Listing) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO listings (id, owner_id, title, description, price, location, country, state, image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, l.ID, l.OwnerID, l.Title, l.Description, l.Price, l.Location, l.Country, l.State, l.ImageURL, l.Status,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetListing retrieves a listing with its like set and review ids.
func (s *Postgres) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	err := scanListing(s.db.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id), &l)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	if err := s.loadListingRefs(ctx, s.db, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Postgres) loadListingRefs(ctx context.Context, q queryer, l *models.Listing) error {
	rows, err := q.Query(ctx,
		`SELECT user_id FROM listing_likes WHERE listing_id = $1 ORDER BY created_at`, l.ID)
	if err != nil {
		return fmt.Errorf("failed to load likes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid uuid.UUID
		if err := rows.Scan(&uid); err != nil {
			return fmt.Errorf("failed to scan like: %w", err)
		}
		l.LikedBy = append(l.LikedBy, uid)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate likes: %w", err)
	}

	rrows, err := q.Query(ctx,
		`SELECT id FROM reviews WHERE listing_id = $1 ORDER BY created_at`, l.ID)
	if err != nil {
		return fmt.Errorf("failed to load review ids: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var rid uuid.UUID
		if err := rrows.Scan(&rid); err != nil {
			return fmt.Errorf("failed to scan review id: %w", err)
		}
		l.Reviews = append(l.Reviews, rid)
	}
	if err := rrows.Err(); err != nil {
		return fmt.Errorf("failed to iterate review ids: %w", err)
	}
	return nil
}

func listingWhere(f ListingFilter, args *[]any) string {
	var conds []string
	add := func(cond string, val any) {
		*args = append(*args, val)
		conds = append(conds, fmt.Sprintf(cond, len(*args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.OwnerID != nil {
		add("owner_id = $%d", *f.OwnerID)
	}
	if f.Country != "" {
		add("country ILIKE $%d", f.Country)
	}
	if f.Search != "" {
		*args = append(*args, "%"+f.Search+"%")
		n := len(*args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR location ILIKE $%d)", n, n))
	}
	if f.RestrictVisibility {
		if f.Viewer != nil {
			add("(status = 'approved' OR owner_id = $%d)", *f.Viewer)
		} else {
			conds = append(conds, "status = 'approved'")
		}
	}

	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// ListListings returns a page of listings matching the filter plus the
// total match count.
func (s *Postgres) ListListings(ctx context.Context, f ListingFilter, p Page) ([]models.Listing, int64, error) {
	var args []any
	where := listingWhere(f, &args)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	limitArgs := append(args, p.Size, p.Offset())
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM listings%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		listingColumns, where, len(args)+1, len(args)+2), limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := scanListing(rows, &l); err != nil {
			return nil, 0, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, total, nil
}

// CountListings returns the number of listings matching the filter.
func (s *Postgres) CountListings(ctx context.Context, f ListingFilter) (int64, error) {
	var args []any
	where := listingWhere(f, &args)
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM listings`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return total, nil
}

// UpdateListing applies mutate to a locked snapshot of the listing.
func (s *Postgres) UpdateListing(ctx context.Context, id uuid.UUID, mutate func(*models.Listing) error) (*models.Listing, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var l models.Listing
	err = scanListing(tx.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id), &l)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock listing: %w", err)
	}

	if err := mutate(&l); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE listings SET
			title = $1, description = $2, price = $3, location = $4,
			country = $5, state = $6, image_url = $7, status = $8,
			updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`, l.Title, l.Description, l.Price, l.Location, l.Country, l.State,
		l.ImageURL, l.Status, id,
	).Scan(&l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	if err := s.loadListingRefs(ctx, tx, &l); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &l, nil
}

// DeleteListing removes the listing, its likes and its reviews in one
// transaction. The cascade is an explicit step, not a schema-level one.
func (s *Postgres) DeleteListing(ctx context.Context, id uuid.UUID, guard func(*models.Listing) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var l models.Listing
	err = scanListing(tx.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id), &l)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock listing: %w", err)
	}

	if guard != nil {
		if err := guard(&l); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE listing_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reviews: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM listing_likes WHERE listing_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete likes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ToggleLike flips the (listing, user) membership row and recomputes the
// counter from the membership table inside the same transaction, so
// like_count can never drift from the set size. The composite primary key
// on listing_likes enforces the uniqueness invariant natively.
func (s *Postgres) ToggleLike(ctx context.Context, listingID, userID uuid.UUID) (bool, int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the listing row: serializes same-user double clicks and makes
	// a toggle racing a delete resolve to NotFound, never a torn write.
	var exists uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM listings WHERE id = $1 FOR UPDATE`, listingID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, ErrNotFound
		}
		return false, 0, fmt.Errorf("failed to lock listing: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM listing_likes WHERE listing_id = $1 AND user_id = $2`, listingID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to remove like: %w", err)
	}
	liked := tag.RowsAffected() == 0
	if liked {
		if _, err := tx.Exec(ctx,
			`INSERT INTO listing_likes (listing_id, user_id) VALUES ($1, $2)`, listingID, userID); err != nil {
			return false, 0, fmt.Errorf("failed to add like: %w", err)
		}
	}

	var likeCount int
	err = tx.QueryRow(ctx, `
		UPDATE listings SET
			like_count = (SELECT COUNT(*) FROM listing_likes WHERE listing_id = $1),
			updated_at = NOW()
		WHERE id = $1
		RETURNING like_count
	`, listingID).Scan(&likeCount)
	if err != nil {
		return false, 0, fmt.Errorf("failed to update like count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return liked, likeCount, nil
}

const reviewColumns = `id, listing_id, author_id, rating, comment, status, created_at`

func scanReview(row pgx.Row, r *models.Review) error {
	return row.Scan(&r.ID, &r.ListingID, &r.AuthorID, &r.Rating, &r.Comment, &r.Status, &r.CreatedAt)
}

// CreateReview inserts a new review.
func (s *Postgres) CreateReview(ctx context.Context, r *models.Review) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO reviews (id, listing_id, author_id, rating, comment, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, r.ID, r.ListingID, r.AuthorID, r.Rating, r.Comment, r.Status).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// GetReview retrieves a review by id.
func (s *Postgres) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var r models.Review
	err := scanReview(s.db.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id), &r)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &r, nil
}

func reviewWhere(f ReviewFilter, args *[]any) string {
	var conds []string
	add := func(cond string, val any) {
		*args = append(*args, val)
		conds = append(conds, fmt.Sprintf(cond, len(*args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.ListingID != nil {
		add("listing_id = $%d", *f.ListingID)
	}
	if f.AuthorID != nil {
		add("author_id = $%d", *f.AuthorID)
	}
	if f.RestrictVisibility {
		if f.Viewer != nil {
			add("(status = 'approved' OR author_id = $%d)", *f.Viewer)
		} else {
			conds = append(conds, "status = 'approved'")
		}
	}

	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// ListReviews returns a page of reviews matching the filter in insertion
// order plus the total match count.
func (s *Postgres) ListReviews(ctx context.Context, f ReviewFilter, p Page) ([]models.Review, int64, error) {
	var args []any
	where := reviewWhere(f, &args)

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	limitArgs := append(args, p.Size, p.Offset())
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM reviews%s ORDER BY created_at LIMIT $%d OFFSET $%d`,
		reviewColumns, where, len(args)+1, len(args)+2), limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		if err := scanReview(rows, &r); err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, total, nil
}

// CountReviews returns the number of reviews matching the filter.
func (s *Postgres) CountReviews(ctx context.Context, f ReviewFilter) (int64, error) {
	var args []any
	where := reviewWhere(f, &args)
	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return total, nil
}

// UpdateReview applies mutate to a locked snapshot of the review. Only the
// status column is writable; review content is immutable.
func (s *Postgres) UpdateReview(ctx context.Context, id uuid.UUID, mutate func(*models.Review) error) (*models.Review, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var r models.Review
	err = scanReview(tx.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, id), &r)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock review: %w", err)
	}

	if err := mutate(&r); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `UPDATE reviews SET status = $1 WHERE id = $2`, r.Status, id); err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &r, nil
}

// DeleteReview removes a review after the guard accepts the locked
// snapshot.
func (s *Postgres) DeleteReview(ctx context.Context, id uuid.UUID, guard func(*models.Review) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var r models.Review
	err = scanReview(tx.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, id), &r)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock review: %w", err)
	}

	if guard != nil {
		if err := guard(&r); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
