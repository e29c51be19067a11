package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medagg/medagg/internal/domain/record"
)

func newTestHandler(records map[int64][]*record.Record) (*Handler, *echo.Echo) {
	svc, _ := newTestService(records)
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func patientContext(e *echo.Echo, method, id string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rec
}

func TestHandler_GenerateSummary(t *testing.T) {
	h, e := newTestHandler(map[int64][]*record.Record{1: flaggedRecords()})

	c, rec := patientContext(e, http.MethodPost, "1")
	if err := h.GenerateSummary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != true {
		t.Error("expected success true")
	}
	if body["disclaimer"] != Disclaimer {
		t.Errorf("unexpected disclaimer: %v", body["disclaimer"])
	}
	if body["clinician_summary"] == "" || body["patient_summary"] == "" {
		t.Error("expected both summaries in the response")
	}
}

func TestHandler_GenerateSummary_NoRecords(t *testing.T) {
	h, e := newTestHandler(nil)

	c, rec := patientContext(e, http.MethodPost, "1")
	if err := h.GenerateSummary(c); err != nil {
		t.Fatalf("expected a plain response, got error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != false {
		t.Error("expected success false")
	}
	if body["error"] != "No records found. Please load data first." {
		t.Errorf("unexpected error message: %v", body["error"])
	}
}

func TestHandler_GenerateSummary_PatientNotFound(t *testing.T) {
	h, e := newTestHandler(nil)

	c, _ := patientContext(e, http.MethodPost, "99")
	err := h.GenerateSummary(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if he.Message != "Patient not found" {
		t.Errorf("unexpected message: %v", he.Message)
	}
}

func TestHandler_GetSummary(t *testing.T) {
	h, e := newTestHandler(map[int64][]*record.Record{1: flaggedRecords()})

	if _, err := h.svc.Generate(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, rec := patientContext(e, http.MethodGet, "1")
	if err := h.GetSummary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != true {
		t.Error("expected success true")
	}
	if _, ok := body["created_at"]; !ok {
		t.Error("expected created_at in the response")
	}
	if body["disclaimer"] != Disclaimer {
		t.Error("expected disclaimer in the response")
	}
}

func TestHandler_GetSummary_NoneGenerated(t *testing.T) {
	h, e := newTestHandler(nil)

	c, rec := patientContext(e, http.MethodGet, "1")
	if err := h.GetSummary(c); err != nil {
		t.Fatalf("expected a plain response, got error: %v", err)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != false {
		t.Error("expected success false")
	}
	if body["error"] != "No summary generated yet" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
}

func TestHandler_GetSummary_InvalidID(t *testing.T) {
	h, e := newTestHandler(nil)

	c, _ := patientContext(e, http.MethodGet, "abc")
	err := h.GetSummary(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
