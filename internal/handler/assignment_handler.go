package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/placement-approval-api/internal/dto"
	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
	"github.com/noah-isme/placement-approval-api/pkg/response"
)

type reviewerAssignmentService interface {
	ChangeReviewer(ctx context.Context, recordID, newReviewerID, actorID int64, reason *string) (*models.ReviewerStatusRecord, models.ReviewerWorkload, error)
	LatestChange(ctx context.Context, recordID int64) (*models.AssignmentChange, error)
	UnnotifiedChanges(ctx context.Context, recordID int64) ([]models.AssignmentChange, error)
	MarkNotificationSent(ctx context.Context, recordID int64) (*models.ReviewerStatusRecord, bool, error)
	Workload(ctx context.Context, reviewerID int64) (models.ReviewerWorkload, error)
	BulkAssign(ctx context.Context, req dto.BulkAssignRequest, actorID int64) (models.BulkAssignResult, error)
}

// AssignmentHandler exposes reviewer reassignment, its audit trail and bulk assignment.
type AssignmentHandler struct {
	service reviewerAssignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service reviewerAssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// ChangeReviewer godoc
// @Summary Reassign a reviewer record
// @Description The new reviewer's workload is returned in meta.workload as an advisory; it never blocks the change.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path int true "Record ID"
// @Param payload body dto.ChangeReviewerRequest true "New reviewer"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /records/{id}/reviewer [post]
func (h *AssignmentHandler) ChangeReviewer(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ChangeReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reassignment payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, workload, err := h.service.ChangeReviewer(c.Request.Context(), id, req.ReviewerID, claims.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil, map[string]interface{}{"workload": workload})
}

// LatestChange godoc
// @Summary Latest reassignment of a record
// @Tags Assignments
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/assignments/latest [get]
func (h *AssignmentHandler) LatestChange(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	change, err := h.service.LatestChange(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if change == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "record has no reassignment"))
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}

// UnnotifiedChanges godoc
// @Summary Reassignments of a record still pending notification
// @Tags Assignments
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/assignments/unnotified [get]
func (h *AssignmentHandler) UnnotifiedChanges(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	changes, err := h.service.UnnotifiedChanges(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}

// MarkNotified godoc
// @Summary Flag the latest reassignment of a record as notified
// @Tags Assignments
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/assignments/notified [post]
func (h *AssignmentHandler) MarkNotified(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	record, changed, err := h.service.MarkNotificationSent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil, map[string]interface{}{"changed": changed})
}

// Workload godoc
// @Summary Advisory workload of a reviewer
// @Tags Assignments
// @Produce json
// @Param id path int true "Reviewer ID"
// @Success 200 {object} response.Envelope
// @Router /reviewers/{id}/workload [get]
func (h *AssignmentHandler) Workload(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	workload, err := h.service.Workload(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workload, nil)
}

// BulkAssign godoc
// @Summary Assign one reviewer to many enrollments
// @Description Runs in one transaction and partitions the request into created, skippedExisting and notFound.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.BulkAssignRequest true "Bulk assignment"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/bulk [post]
func (h *AssignmentHandler) BulkAssign(c *gin.Context) {
	var req dto.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk assignment payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.BulkAssign(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
