package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/placement-approval-api/internal/dto"
	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
	"github.com/noah-isme/placement-approval-api/pkg/response"
)

type reviewStatusService interface {
	Get(ctx context.Context, recordID int64) (*models.ReviewerStatusRecord, error)
	Transition(ctx context.Context, recordID int64, target models.ReviewStatus, actorID int64, reason *string) (*models.ReviewerStatusRecord, error)
	MigrateLegacy(ctx context.Context, recordID, actorID int64) (*models.ReviewerStatusRecord, error)
	NextStatuses(status models.ReviewStatus) ([]models.ReviewStatus, error)
}

type committeeVoteService interface {
	CastVote(ctx context.Context, recordID, voterID int64, vote models.VoteChoice, remarks *string) (*models.ReviewerStatusRecord, models.VotingResult, error)
	ConfigureVoting(ctx context.Context, recordID int64, requiredVotes int, deadline *time.Time) (*models.ReviewerStatusRecord, error)
	Result(ctx context.Context, recordID int64) (models.VotingResult, error)
	HasVoted(ctx context.Context, recordID, voterID int64) (bool, error)
}

// ReviewRecordHandler exposes status transitions and the voting ledger of
// reviewer records.
type ReviewRecordHandler struct {
	statuses reviewStatusService
	votes    committeeVoteService
}

// NewReviewRecordHandler constructs the handler.
func NewReviewRecordHandler(statuses reviewStatusService, votes committeeVoteService) *ReviewRecordHandler {
	return &ReviewRecordHandler{statuses: statuses, votes: votes}
}

// Get godoc
// @Summary Get a reviewer record with its history, votes and assignment trail
// @Tags Review Records
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /records/{id} [get]
func (h *ReviewRecordHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.statuses.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Transition godoc
// @Summary Move a reviewer record to a new status
// @Tags Review Records
// @Accept json
// @Produce json
// @Param id path int true "Record ID"
// @Param payload body dto.TransitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /records/{id}/transitions [post]
func (h *ReviewRecordHandler) Transition(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.statuses.Transition(c.Request.Context(), id, req.Status, claims.UserID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// MigrateLegacy godoc
// @Summary Move a legacy status onto the staged pipeline
// @Tags Review Records
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /records/{id}/migrate-legacy [post]
func (h *ReviewRecordHandler) MigrateLegacy(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.statuses.MigrateLegacy(c.Request.Context(), id, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// NextStatuses godoc
// @Summary List statuses reachable from a status
// @Tags Review Records
// @Produce json
// @Param status path string true "Status"
// @Success 200 {object} response.Envelope
// @Router /statuses/{status}/next [get]
func (h *ReviewRecordHandler) NextStatuses(c *gin.Context) {
	status := models.ReviewStatus(c.Param("status"))
	next, err := h.statuses.NextStatuses(status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, next, nil, map[string]interface{}{
		"era":      status.Era(),
		"terminal": status.IsTerminal(),
	})
}

// CastVote godoc
// @Summary Cast the caller's committee vote on a record
// @Tags Committee Votes
// @Accept json
// @Produce json
// @Param id path int true "Record ID"
// @Param payload body dto.CastVoteRequest true "Ballot"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /records/{id}/votes [post]
func (h *ReviewRecordHandler) CastVote(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid vote payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, result, err := h.votes.CastVote(c.Request.Context(), id, claims.UserID, req.Vote, req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.VoteResponse{Record: record, Result: result})
}

// VoteResult godoc
// @Summary Tally the voting ledger of a record
// @Tags Committee Votes
// @Produce json
// @Param id path int true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/votes/result [get]
func (h *ReviewRecordHandler) VoteResult(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.votes.Result(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// HasVoted godoc
// @Summary Check whether a voter already voted on a record
// @Tags Committee Votes
// @Produce json
// @Param id path int true "Record ID"
// @Param voterId path int true "Voter ID"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/votes/{voterId} [get]
func (h *ReviewRecordHandler) HasVoted(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	voterID, err := idParam(c, "voterId")
	if err != nil {
		response.Error(c, err)
		return
	}
	voted, err := h.votes.HasVoted(c.Request.Context(), id, voterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"voterId": voterID, "hasVoted": voted}, nil)
}

// ConfigureVoting godoc
// @Summary Set the vote threshold and deadline of a record
// @Tags Committee Votes
// @Accept json
// @Produce json
// @Param id path int true "Record ID"
// @Param payload body dto.ConfigureVotingRequest true "Voting settings"
// @Success 200 {object} response.Envelope
// @Router /records/{id}/voting [post]
func (h *ReviewRecordHandler) ConfigureVoting(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ConfigureVotingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid voting payload"))
		return
	}
	record, err := h.votes.ConfigureVoting(c.Request.Context(), id, req.RequiredVotes, req.Deadline)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
