package summary

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medagg/medagg/internal/domain/patient"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patient/:id/generate-summary", h.GenerateSummary)
	api.GET("/patient/:id/summary", h.GetSummary)
}

func (h *Handler) GenerateSummary(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	result, err := h.svc.Generate(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, patient.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		case errors.Is(err, ErrNoRecords):
			return c.JSON(http.StatusOK, map[string]interface{}{
				"success": false,
				"error":   "No records found. Please load data first.",
			})
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate summary")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":           true,
		"clinician_summary": result.ClinicianSummary,
		"patient_summary":   result.PatientSummary,
		"anomalies":         result.Anomalies,
		"disclaimer":        result.Disclaimer,
	})
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	s, err := h.svc.GetLatest(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, patient.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		case errors.Is(err, ErrNotFound):
			return c.JSON(http.StatusOK, map[string]interface{}{
				"success": false,
				"error":   "No summary generated yet",
			})
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load summary")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":           true,
		"clinician_summary": s.ClinicianSummary,
		"patient_summary":   s.PatientSummary,
		"anomalies":         s.Anomalies,
		"created_at":        s.CreatedAt,
		"disclaimer":        Disclaimer,
	})
}
