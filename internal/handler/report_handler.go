package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/service"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
	"github.com/GutnikElina/cinema-api/pkg/response"
)

// ReportHandler handles asynchronous sales report endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Create godoc
// @Summary Queue a sales report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body object true "Report payload"
// @Success 202 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Format models.ReportFormat `json:"format"`
	}
	// An empty body defaults to CSV.
	if err := c.ShouldBindJSON(&payload); err != nil && err != io.EOF {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	status, err := h.service.CreateJob(c.Request.Context(), claims.UserID, payload.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, status)
}

// Status godoc
// @Summary Get report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /reports/jobs/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.Status(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	contentType := "text/csv"
	if download.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Content-Type", contentType)
	c.File(download.File.Name())
}

// Delete godoc
// @Summary Delete a report job
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 204 {object} response.Envelope
// @Router /reports/jobs/{id} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
