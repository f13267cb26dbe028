package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/wanderhq/wanderlust/internal/errors"
	"github.com/wanderhq/wanderlust/internal/middleware"
	"github.com/wanderhq/wanderlust/internal/review"
)

// handleCreateReview handles review submission on a listing
func (s *APIServer) handleCreateReview(c *gin.Context) {
	listingID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var in review.CreateReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	r, err := s.reviewService.Create(c.Request.Context(), middleware.IdentityFromContext(c), listingID, &in)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, r)
}

// handleListReviews handles fetching the reviews of a listing
func (s *APIServer) handleListReviews(c *gin.Context) {
	listingID, ok := parseIDParam(c)
	if !ok {
		return
	}

	page, pageSize := parsePagination(c)
	result, err := s.reviewService.ListForListing(c.Request.Context(), middleware.IdentityFromContext(c), listingID, page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleDeleteReview handles review deletion by its author or an admin
func (s *APIServer) handleDeleteReview(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := s.reviewService.Delete(c.Request.Context(), middleware.IdentityFromContext(c), id); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
}
