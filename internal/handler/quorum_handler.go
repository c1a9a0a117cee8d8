package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/placement-approval-api/internal/models"
	appErrors "github.com/noah-isme/placement-approval-api/pkg/errors"
	"github.com/noah-isme/placement-approval-api/pkg/response"
)

type quorumService interface {
	Compute(ctx context.Context, enrollmentID int64) (models.QuorumReport, error)
	ListPassing(ctx context.Context) ([]models.QuorumReport, error)
	ExportPassing(ctx context.Context, format models.ExportFormat) (*models.ExportFile, error)
}

// QuorumHandler exposes the derived enrollment decisions.
type QuorumHandler struct {
	service        quorumService
	exportsEnabled bool
}

// NewQuorumHandler constructs the handler.
func NewQuorumHandler(service quorumService, exportsEnabled bool) *QuorumHandler {
	return &QuorumHandler{service: service, exportsEnabled: exportsEnabled}
}

// Compute godoc
// @Summary Compute the approval quorum of an enrollment
// @Tags Quorum
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quorum/enrollments/{id} [get]
func (h *QuorumHandler) Compute(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	report, err := h.service.Compute(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ListPassing godoc
// @Summary List active enrollments that currently pass
// @Tags Quorum
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /quorum/passing [get]
func (h *QuorumHandler) ListPassing(c *gin.Context) {
	reports, err := h.service.ListPassing(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil, map[string]interface{}{"count": len(reports)})
}

// ExportPassing godoc
// @Summary Download the passing list
// @Tags Quorum
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /quorum/passing/export [get]
func (h *QuorumHandler) ExportPassing(c *gin.Context) {
	if !h.exportsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	format := models.ExportFormat(c.DefaultQuery("format", string(models.ExportFormatCSV)))
	file, err := h.service.ExportPassing(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
