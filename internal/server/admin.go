package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wanderhq/wanderlust/internal/admin"
	apierrors "github.com/wanderhq/wanderlust/internal/errors"
	"github.com/wanderhq/wanderlust/internal/middleware"
	"github.com/wanderhq/wanderlust/internal/models"
	"github.com/wanderhq/wanderlust/internal/moderation"
)

// handleAdminStats handles the moderation dashboard counters
func (s *APIServer) handleAdminStats(c *gin.Context) {
	stats, err := s.adminService.GetStats(c.Request.Context(), middleware.IdentityFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// handleAdminQueue handles the pending moderation queue
func (s *APIServer) handleAdminQueue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	queue, err := s.adminService.PendingQueue(c.Request.Context(), middleware.IdentityFromContext(c), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, queue)
}

func (s *APIServer) transitionListing(c *gin.Context, target moderation.Status) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var l *models.Listing
	var err error
	if target == moderation.StatusApproved {
		l, err = s.adminService.ApproveListing(c.Request.Context(), middleware.IdentityFromContext(c), id)
	} else {
		l, err = s.adminService.RejectListing(c.Request.Context(), middleware.IdentityFromContext(c), id)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

func (s *APIServer) transitionReview(c *gin.Context, target moderation.Status) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var r *models.Review
	var err error
	if target == moderation.StatusApproved {
		r, err = s.adminService.ApproveReview(c.Request.Context(), middleware.IdentityFromContext(c), id)
	} else {
		r, err = s.adminService.RejectReview(c.Request.Context(), middleware.IdentityFromContext(c), id)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, r)
}

// handleApproveListing handles approving a pending listing
func (s *APIServer) handleApproveListing(c *gin.Context) {
	s.transitionListing(c, moderation.StatusApproved)
}

// handleRejectListing handles rejecting a pending or approved listing
func (s *APIServer) handleRejectListing(c *gin.Context) {
	s.transitionListing(c, moderation.StatusRejected)
}

// handleApproveReview handles approving a pending review
func (s *APIServer) handleApproveReview(c *gin.Context) {
	s.transitionReview(c, moderation.StatusApproved)
}

// handleRejectReview handles rejecting a pending or approved review
func (s *APIServer) handleRejectReview(c *gin.Context) {
	s.transitionReview(c, moderation.StatusRejected)
}

// bulkRequest is the payload for a bulk moderation transition
type bulkRequest struct {
	Kind    admin.EntityKind  `json:"kind" binding:"required"`
	Status  moderation.Status `json:"status" binding:"required"`
	Target  moderation.Status `json:"target" binding:"required"`
	Country string            `json:"country"`
	IDs     []uuid.UUID       `json:"ids"`
}

// handleAdminBulk handles bulk approve/reject over a filter or an
// explicit id list
func (s *APIServer) handleAdminBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}
	if req.Kind != admin.KindListing && req.Kind != admin.KindReview {
		respondError(c, apierrors.NewInvalidRequestError("Kind must be listing or review"))
		return
	}
	if !req.Target.Valid() {
		respondError(c, apierrors.NewInvalidRequestError("Invalid target status"))
		return
	}

	ident := middleware.IdentityFromContext(c)
	var result *admin.BulkResult
	var err error
	if len(req.IDs) > 0 {
		result, err = s.adminService.BulkTransitionIDs(c.Request.Context(), ident, req.Kind, req.IDs, req.Target)
	} else {
		if !req.Status.Valid() {
			respondError(c, apierrors.NewInvalidRequestError("Invalid status filter"))
			return
		}
		f := admin.BulkFilter{Kind: req.Kind, Status: req.Status, Country: req.Country}
		result, err = s.adminService.BulkTransition(c.Request.Context(), ident, f, req.Target)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
