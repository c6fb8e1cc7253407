package codes

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	h := NewHandler(newTestService())
	e := echo.New()
	return h, e
}

func TestHandler_SearchDiagnoses_Success(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes/diagnoses?q=caries", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SearchDiagnoses(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var results []*Diagnosis
	json.Unmarshal(rec.Body.Bytes(), &results)
	if len(results) != 1 || results[0].Code != "K02.9" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestHandler_SearchDiagnoses_NoMatchesIsEmptyArray(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes/diagnoses?q=zzz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SearchDiagnoses(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", body)
	}
}

func TestHandler_SearchDiagnoses_MissingQuery(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes/diagnoses", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.SearchDiagnoses(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SearchProcedures_Success(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/codes/procedures?q=52318", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SearchProcedures(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var results []*Procedure
	json.Unmarshal(rec.Body.Bytes(), &results)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestHandler_GetDiagnosis(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/codes/diagnoses/:code")
	c.SetParamNames("code")
	c.SetParamValues("K02.9")

	if err := h.GetDiagnosis(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var d Diagnosis
	json.Unmarshal(rec.Body.Bytes(), &d)
	if d.Description != "Dental caries, unspecified" {
		t.Errorf("unexpected description %q", d.Description)
	}
}

func TestHandler_GetProcedure_NotFound(t *testing.T) {
	h, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/codes/procedures/:code")
	c.SetParamNames("code")
	c.SetParamValues("00000-00")

	err := h.GetProcedure(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
