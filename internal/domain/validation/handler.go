package validation

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/icdachi/validator/internal/domain/relationship"
	"github.com/icdachi/validator/internal/domain/verdict"
	"github.com/icdachi/validator/internal/platform/auth"
)

// Handler exposes the pipeline over HTTP.
type Handler struct {
	pipeline *Pipeline
}

func NewHandler(p *Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// RegisterRoutes registers validation routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	coders := auth.RequireRole(auth.RoleCoder, auth.RoleReviewer)
	api.POST("/validate", h.Validate, coders)
	api.GET("/validate/stats", h.Stats, auth.RequireRole(auth.RoleAdmin, auth.RoleReviewer))
	api.POST("/relationships", h.Confirm, auth.RequireRole(auth.RoleReviewer))
}

type validateRequest struct {
	DiagnosisCode string `json:"diagnosis_code"`
	ProcedureCode string `json:"procedure_code"`
}

// ValidateResponse is the HTTP shape of a validation result.
type ValidateResponse struct {
	DiagnosisCode string `json:"diagnosis_code"`
	ProcedureCode string `json:"procedure_code"`
	*verdict.Result
	Cached bool `json:"cached"`
}

// Validate handles POST /api/v1/validate
func (h *Handler) Validate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DiagnosisCode == "" || req.ProcedureCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "diagnosis_code and procedure_code are required")
	}

	out, err := h.pipeline.ValidatePair(c.Request().Context(), req.DiagnosisCode, req.ProcedureCode)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, ValidateResponse{
		DiagnosisCode: req.DiagnosisCode,
		ProcedureCode: req.ProcedureCode,
		Result:        out.Result,
		Cached:        out.Cached,
	})
}

type confirmRequest struct {
	DiagnosisCode    string  `json:"diagnosis_code"`
	ProcedureCode    string  `json:"procedure_code"`
	RelationshipText string  `json:"relationship_text"`
	Confidence       float64 `json:"confidence"`
	Source           string  `json:"source"`
}

// Confirm handles POST /api/v1/relationships
func (h *Handler) Confirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DiagnosisCode == "" || req.ProcedureCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "diagnosis_code and procedure_code are required")
	}
	if req.Source == "" {
		req.Source = string(relationship.SourceUserConfirmed)
	}

	inserted, err := h.pipeline.Confirm(c.Request().Context(), req.DiagnosisCode, req.ProcedureCode,
		req.RelationshipText, req.Confidence, relationship.Source(req.Source))
	switch {
	case errors.Is(err, verdict.ErrCodeNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return storeError(err)
	}

	status := http.StatusCreated
	if !inserted {
		status = http.StatusOK
	}
	return c.JSON(status, map[string]any{
		"diagnosis_code": req.DiagnosisCode,
		"procedure_code": req.ProcedureCode,
		"inserted":       inserted,
	})
}

// Stats handles GET /api/v1/validate/stats
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pipeline.Stats(c.Request().Context()))
}

func storeError(err error) error {
	if errors.Is(err, verdict.ErrStoreUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "validation store unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
