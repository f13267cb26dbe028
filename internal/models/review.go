package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/wanderhq/wanderlust/internal/moderation"
)

// Review rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review represents a star-rated comment attached to a listing. Reviews
// are never edited in place; they are created, moderated, and deleted.
type Review struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	ListingID uuid.UUID         `json:"listing_id" db:"listing_id"`
	AuthorID  uuid.UUID         `json:"author_id" db:"author_id"`
	Rating    int               `json:"rating" db:"rating"`
	Comment   string            `json:"comment" db:"comment"`
	Status    moderation.Status `json:"status" db:"status"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
