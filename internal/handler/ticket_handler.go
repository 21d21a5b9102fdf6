package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/service"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
	"github.com/GutnikElina/cinema-api/pkg/response"
)

// TicketHandler handles the purchase and confirmation workflow endpoints.
type TicketHandler struct {
	service *service.TicketService
	metrics *service.MetricsService
}

// NewTicketHandler constructs a ticket handler.
func NewTicketHandler(svc *service.TicketService, metrics *service.MetricsService) *TicketHandler {
	return &TicketHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List the current user's tickets
// @Tags Tickets
// @Produce json
// @Param session_id query string false "Filter by session"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tickets [get]
func (h *TicketHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.TicketFilter{UserID: claims.UserID}
	filter.SessionID = c.Query("session_id")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	tickets, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tickets, pagination)
}

// Get godoc
// @Summary Get ticket by id
// @Tags Tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Router /tickets/{id} [get]
func (h *TicketHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ticket, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if ticket.UserID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "ticket not found"))
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Purchase godoc
// @Summary Buy a seat for a session
// @Tags Tickets
// @Accept json
// @Produce json
// @Param payload body service.PurchaseTicketRequest true "Purchase payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets [post]
func (h *TicketHandler) Purchase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.PurchaseTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	ticket, err := h.service.Purchase(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordTicketSold()
	response.Created(c, ticket)
}

// Return godoc
// @Summary Return a ticket
// @Tags Tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/return [post]
func (h *TicketHandler) Return(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ticket, err := h.service.Return(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.metrics.RecordTicketReturned()
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Process godoc
// @Summary Confirm or reject a pending ticket
// @Tags Tickets
// @Accept json
// @Produce json
// @Param id path string true "Ticket ID"
// @Param payload body service.ConfirmTicketRequest true "Confirmation payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tickets/{id}/process [post]
func (h *TicketHandler) Process(c *gin.Context) {
	var req service.ConfirmTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	ticket, err := h.service.Process(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Export godoc
// @Summary Export the current user's tickets
// @Tags Tickets
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /tickets/export [get]
func (h *TicketHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	payload, contentType, err := h.service.Export(c.Request.Context(), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("tickets.%s", format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
