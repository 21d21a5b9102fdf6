package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GutnikElina/cinema-api/internal/models"
	"github.com/GutnikElina/cinema-api/internal/service"
	appErrors "github.com/GutnikElina/cinema-api/pkg/errors"
	"github.com/GutnikElina/cinema-api/pkg/response"
)

// MovieHandler handles catalog endpoints.
type MovieHandler struct {
	service *service.MovieService
}

// NewMovieHandler constructs a movie handler.
func NewMovieHandler(svc *service.MovieService) *MovieHandler {
	return &MovieHandler{service: svc}
}

// List godoc
// @Summary List movies
// @Tags Movies
// @Produce json
// @Param genre query string false "Filter by genre"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /movies [get]
func (h *MovieHandler) List(c *gin.Context) {
	var filter models.MovieFilter
	filter.Genre = c.Query("genre")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	movies, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, movies, pagination)
}

// Get godoc
// @Summary Get movie by id
// @Tags Movies
// @Produce json
// @Param id path string true "Movie ID"
// @Success 200 {object} response.Envelope
// @Router /movies/{id} [get]
func (h *MovieHandler) Get(c *gin.Context) {
	movie, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, movie, nil)
}

// Create godoc
// @Summary Add movie to catalog
// @Tags Movies
// @Accept json
// @Produce json
// @Param payload body service.CreateMovieRequest true "Movie payload"
// @Success 201 {object} response.Envelope
// @Router /movies [post]
func (h *MovieHandler) Create(c *gin.Context) {
	var req service.CreateMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	movie, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, movie)
}

// Update godoc
// @Summary Update movie
// @Tags Movies
// @Accept json
// @Produce json
// @Param id path string true "Movie ID"
// @Param payload body service.UpdateMovieRequest true "Movie payload"
// @Success 200 {object} response.Envelope
// @Router /movies/{id} [put]
func (h *MovieHandler) Update(c *gin.Context) {
	var req service.UpdateMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	movie, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, movie, nil)
}

// Delete godoc
// @Summary Delete movie
// @Tags Movies
// @Produce json
// @Param id path string true "Movie ID"
// @Success 204 {object} response.Envelope
// @Router /movies/{id} [delete]
func (h *MovieHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
