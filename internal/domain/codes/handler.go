package codes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/icdachi/validator/internal/platform/auth"
	"github.com/icdachi/validator/pkg/pagination"
)

// Handler provides REST endpoints for code lookup and autocomplete.
type Handler struct {
	svc *Service
}

// NewHandler creates a new code registry handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers code routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/codes", auth.RequireRole(auth.RoleCoder, auth.RoleReviewer))
	g.GET("/diagnoses", h.SearchDiagnoses)
	g.GET("/diagnoses/:code", h.GetDiagnosis)
	g.GET("/procedures", h.SearchProcedures)
	g.GET("/procedures/:code", h.GetProcedure)
}

func getLimit(c echo.Context) int {
	return pagination.FromContext(c, pagination.Bounds{Default: defaultSearchLimit, Max: maxSearchLimit}).Limit
}

// SearchDiagnoses handles GET /api/v1/codes/diagnoses?q=...
func (h *Handler) SearchDiagnoses(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	results, err := h.svc.SearchDiagnoses(c.Request().Context(), query, getLimit(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if results == nil {
		results = []*Diagnosis{}
	}
	return c.JSON(http.StatusOK, results)
}

// GetDiagnosis handles GET /api/v1/codes/diagnoses/:code
func (h *Handler) GetDiagnosis(c echo.Context) error {
	d, err := h.svc.LookupDiagnosis(c.Request().Context(), c.Param("code"))
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, d)
}

// SearchProcedures handles GET /api/v1/codes/procedures?q=...
func (h *Handler) SearchProcedures(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'q' is required")
	}
	results, err := h.svc.SearchProcedures(c.Request().Context(), query, getLimit(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if results == nil {
		results = []*Procedure{}
	}
	return c.JSON(http.StatusOK, results)
}

// GetProcedure handles GET /api/v1/codes/procedures/:code
func (h *Handler) GetProcedure(c echo.Context) error {
	p, err := h.svc.LookupProcedure(c.Request().Context(), c.Param("code"))
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func lookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
