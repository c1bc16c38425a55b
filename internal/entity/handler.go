package entity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/RoyFahel/cloud-project/internal/platform/metrics"
	"github.com/RoyFahel/cloud-project/internal/store"
)

// Handler exposes one entity service under /api/<plural>. It is the only
// place error kinds are mapped to HTTP status codes; the service layer
// never sees HTTP.
type Handler struct {
	svc     *Service
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewHandler builds the HTTP surface for one entity service. m may be
// nil when the caller does not collect metrics (tests).
func NewHandler(svc *Service, log zerolog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		svc:     svc,
		log:     log.With().Str("entity", svc.Schema().Name).Logger(),
		metrics: m,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	plural := "/" + h.svc.Schema().Plural
	api.GET(plural, h.List)
	api.GET(plural+"/:id", h.GetByID)
	api.POST(plural, h.Create)
	api.PUT(plural+"/:id", h.Update)
	api.DELETE(plural+"/:id", h.Delete)
}

// List renders all live records. Store failures deliberately degrade to
// an empty list instead of a 500: read endpoints stay available even
// when the store is down, and the failure is logged instead of surfaced.
func (h *Handler) List(c echo.Context) error {
	schema := h.svc.Schema()
	items, count, err := h.svc.List(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list failed, returning empty result")
		h.metrics.IncListDegraded(schema.Name)
		items, count = []Expanded{}, 0
	}
	return c.JSON(http.StatusOK, map[string]any{
		schema.Plural: items,
		"count":       count,
	})
}

func (h *Handler) GetByID(c echo.Context) error {
	schema := h.svc.Schema()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Invalid ID format"})
	}
	item, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": schema.Title + " not found"})
		}
		h.log.Error().Err(err).Str("id", id.String()).Msg("get failed")
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":   "Failed to get " + schema.Name,
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) Create(c echo.Context) error {
	schema := h.svc.Schema()
	var payload store.Document
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "Failed to create " + schema.Name,
			"message": "invalid JSON body",
		})
	}
	item, err := h.svc.Create(c.Request().Context(), payload)
	if err != nil {
		return h.writeError(c, "Failed to create "+schema.Name, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{schema.Name: item})
}

func (h *Handler) Update(c echo.Context) error {
	schema := h.svc.Schema()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Invalid ID format"})
	}
	var payload store.Document
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   "Failed to update " + schema.Name,
			"message": "invalid JSON body",
		})
	}
	item, err := h.svc.Update(c.Request().Context(), id, payload)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": schema.Title + " not found"})
		}
		return h.writeError(c, "Failed to update "+schema.Name, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) Delete(c echo.Context) error {
	schema := h.svc.Schema()
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "Invalid ID format"})
	}
	deleted, err := h.svc.Delete(c.Request().Context(), id)
	if err != nil {
		return h.writeError(c, "Failed to delete "+schema.Name, err)
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, map[string]any{"error": schema.Title + " not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": schema.Title + " deleted successfully",
		"id":      id.String(),
	})
}

// writeError maps the error taxonomy onto status codes: validation and
// dangling references are client errors, unique collisions are
// conflicts, everything else is a server failure.
func (h *Handler) writeError(c echo.Context, title string, err error) error {
	var (
		valErr *ValidationError
		refErr *ReferenceNotFoundError
		cflErr *store.ConflictError
	)
	switch {
	case errors.As(err, &valErr), errors.As(err, &refErr):
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":   title,
			"message": err.Error(),
		})
	case errors.As(err, &cflErr):
		return c.JSON(http.StatusConflict, map[string]any{
			"error":   "Duplicate key error",
			"message": err.Error(),
		})
	default:
		h.log.Error().Err(err).Msg("unexpected store failure")
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":   title,
			"message": err.Error(),
		})
	}
}
