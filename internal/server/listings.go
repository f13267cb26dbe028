package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apierrors "github.com/wanderhq/wanderlust/internal/errors"
	"github.com/wanderhq/wanderlust/internal/listing"
	"github.com/wanderhq/wanderlust/internal/middleware"
	"github.com/wanderhq/wanderlust/internal/moderation"
)

// parseIDParam extracts and validates the :id path parameter
func parseIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid id format"))
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads page and page_size query parameters. Out-of-range
// values are clamped by the services.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// handleCreateListing handles listing creation
func (s *APIServer) handleCreateListing(c *gin.Context) {
	var in listing.CreateListingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	l, err := s.listingService.Create(c.Request.Context(), middleware.IdentityFromContext(c), &in)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, l)
}

// handleGetListing handles fetching a single listing
func (s *APIServer) handleGetListing(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	l, err := s.listingService.Get(c.Request.Context(), middleware.IdentityFromContext(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

// handleListListings handles browsing and searching listings
func (s *APIServer) handleListListings(c *gin.Context) {
	f := listing.ListFilter{
		Country: c.Query("country"),
		Search:  c.Query("search"),
		Mine:    c.Query("mine") == "true",
	}
	if raw := c.Query("status"); raw != "" {
		status := moderation.Status(raw)
		if !status.Valid() {
			respondError(c, apierrors.NewInvalidRequestError("Invalid status filter"))
			return
		}
		f.Status = &status
	}

	page, pageSize := parsePagination(c)
	result, err := s.listingService.List(c.Request.Context(), middleware.IdentityFromContext(c), f, page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleUpdateListing handles owner edits to a listing
func (s *APIServer) handleUpdateListing(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var in listing.UpdateListingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	l, err := s.listingService.Update(c.Request.Context(), middleware.IdentityFromContext(c), id, &in)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

// handleDeleteListing handles listing deletion
func (s *APIServer) handleDeleteListing(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := s.listingService.Delete(c.Request.Context(), middleware.IdentityFromContext(c), id); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Listing deleted"})
}

// handleToggleLike handles the like toggle on a listing
func (s *APIServer) handleToggleLike(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	result, err := s.listingService.ToggleLike(c.Request.Context(), middleware.IdentityFromContext(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
