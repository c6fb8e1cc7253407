package verdictlog

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/icdachi/validator/internal/platform/auth"
	"github.com/icdachi/validator/pkg/pagination"
)

// Handler exposes the verdict log for review.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers verdict log routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/verdicts", auth.RequireRole(auth.RoleReviewer))
	g.GET("", h.List)
	g.PUT("/:diagnosis/:procedure/rating", h.Rate)
}

// List handles GET /api/v1/verdicts?limit=&offset=
func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c, pagination.Bounds{Default: defaultListLimit, Max: maxListLimit})
	entries, err := h.repo.List(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, p, len(entries)))
}

type rateRequest struct {
	Rating string `json:"rating"`
	Notes  string `json:"notes"`
}

// Rate handles PUT /api/v1/verdicts/:diagnosis/:procedure/rating
func (h *Handler) Rate(c echo.Context) error {
	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Rating == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "rating is required")
	}
	err := h.repo.Rate(c.Request().Context(), c.Param("diagnosis"), c.Param("procedure"), req.Rating, req.Notes)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
