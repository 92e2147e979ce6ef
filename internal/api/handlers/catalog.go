package handlers

import (
	"context"
	"net/http"
	"strconv"

	"moviehub-backend/internal/api/middleware"
	"moviehub-backend/internal/apperrors"
	"moviehub-backend/internal/catalog"
	"moviehub-backend/internal/services"
	"moviehub-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CatalogHandler serves the aggregated search and browsing endpoints
type CatalogHandler struct {
	catalogService *services.CatalogService
	validator      *validator.Validate
	logger         *zap.Logger
}

func NewCatalogHandler(catalogService *services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		validator:      validator.New(),
		logger:         logger,
	}
}

// Search handles GET /api/search
func (h *CatalogHandler) Search(c *gin.Context) {
	var req services.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	page, err := h.catalogService.Search(h.onBehalfOf(c), req)
	if err != nil {
		h.logger.Warn("Search aggregation failed",
			zap.String("query", req.Query),
			zap.Int("page", req.Page),
			zap.Error(err))
		utils.ErrorResponse(c, http.StatusBadGateway, "Failed to load results", fetchErrorMessage(err))
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetMovie handles GET /api/movies/:id
func (h *CatalogHandler) GetMovie(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}

	details, err := h.catalogService.GetMovieDetails(h.onBehalfOf(c), id)
	if err != nil {
		h.respondFetchError(c, "Failed to load movie", err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// GetRecommendations handles GET /api/movies/:id/recommendations
func (h *CatalogHandler) GetRecommendations(c *gin.Context) {
	id, ok := movieID(c)
	if !ok {
		return
	}

	var req services.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}

	recommendations, err := h.catalogService.GetRecommendations(h.onBehalfOf(c), id, req.Page)
	if err != nil {
		h.respondFetchError(c, "Failed to load recommendations", err)
		return
	}

	c.JSON(http.StatusOK, recommendations)
}

// GetGenres handles GET /api/genres
func (h *CatalogHandler) GetGenres(c *gin.Context) {
	genres, err := h.catalogService.GetGenres(h.onBehalfOf(c))
	if err != nil {
		h.respondFetchError(c, "Failed to load genres", err)
		return
	}

	c.JSON(http.StatusOK, genres)
}

// onBehalfOf carries the caller's identity into proxy calls so they count
// against the caller's own quota.
func (h *CatalogHandler) onBehalfOf(c *gin.Context) context.Context {
	return catalog.WithClientIdentity(c.Request.Context(), middleware.ClientIdentity(c.Request))
}

// respondFetchError relays proxy statuses below 500 and reports everything
// else as a bad gateway.
func (h *CatalogHandler) respondFetchError(c *gin.Context, label string, err error) {
	status := http.StatusBadGateway
	if upstreamErr, ok := apperrors.AsUpstream(err); ok && upstreamErr.Status < 500 {
		status = upstreamErr.Status
	}

	h.logger.Warn(label, zap.Int("status", status), zap.Error(err))
	utils.ErrorResponse(c, status, label, fetchErrorMessage(err))
}

func fetchErrorMessage(err error) string {
	if upstreamErr, ok := apperrors.AsUpstream(err); ok {
		return upstreamErr.Message
	}
	return "Failed to load data"
}

func movieID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request", "Movie ID must be a positive integer")
		return 0, false
	}
	return id, true
}
