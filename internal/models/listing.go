package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wanderhq/wanderlust/internal/moderation"
)

// Listing represents a published destination subject to moderation.
type Listing struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	OwnerID     uuid.UUID         `json:"owner_id" db:"owner_id"`
	Title       string            `json:"title" db:"title"`
	Description string            `json:"description" db:"description"`
	Price       decimal.Decimal   `json:"price" db:"price"`
	Location    string            `json:"location" db:"location"`
	Country     string            `json:"country" db:"country"`
	State       string            `json:"state,omitempty" db:"state"`
	ImageURL    string            `json:"image_url,omitempty" db:"image_url"`
	Status      moderation.Status `json:"status" db:"status"`
	LikeCount   int               `json:"like_count" db:"like_count"`
	LikedBy     []uuid.UUID       `json:"liked_by,omitempty"`
	Reviews     []uuid.UUID       `json:"reviews,omitempty"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// LikedByUser reports whether userID is in the listing's like set.
func (l *Listing) LikedByUser(userID uuid.UUID) bool {
	for _, id := range l.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}
