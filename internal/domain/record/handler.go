package record

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medagg/medagg/internal/domain/patient"
	"github.com/medagg/medagg/internal/platform/blobstore"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/load-sample-data", h.LoadSampleData)
	api.POST("/upload-data", h.UploadData)
	api.GET("/patient/:id/records", h.GetPatientRecords)
}

func (h *Handler) LoadSampleData(c echo.Context) error {
	patientName := c.FormValue("patient_name")
	if patientName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Patient name is required")
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form data")
	}

	res, err := h.svc.LoadSample(c.Request().Context(), patientName, form["hospitals"], form["categories"])
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load sample data")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":            true,
		"patient_id":         res.Patient.ID,
		"records_loaded":     res.RecordsLoaded,
		"anomalies_detected": res.AnomaliesDetected,
		"message":            fmt.Sprintf("Loaded %d records from %d hospitals", res.RecordsLoaded, res.HospitalCount),
	})
}

func (h *Handler) UploadData(c echo.Context) error {
	patientName := c.FormValue("patient_name")
	if patientName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Patient name is required")
	}

	fh, err := c.FormFile("file")
	if err != nil || fh.Filename == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Filename is required")
	}
	if !strings.HasSuffix(fh.Filename, ".json") {
		return echo.NewHTTPError(http.StatusBadRequest, "Only JSON files are accepted")
	}

	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}

	res, err := h.svc.Upload(c.Request().Context(), patientName, fh.Filename, content)
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			return echo.NewHTTPError(http.StatusBadRequest, vErr.Error())
		case errors.Is(err, blobstore.ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds maximum allowed size")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to store uploaded records")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":        true,
		"patient_id":     res.Patient.ID,
		"records_loaded": res.RecordsLoaded,
		"message":        fmt.Sprintf("Uploaded %d records from %s", res.RecordsLoaded, res.FileName),
	})
}

func (h *Handler) GetPatientRecords(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	var categories []string
	if raw := c.QueryParam("categories"); raw != "" {
		categories = strings.Split(raw, ",")
	}

	view, err := h.svc.PatientRecords(c.Request().Context(), id, categories)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load records")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"patient":    view.Patient,
		"records":    view.Records,
		"chart_data": view.ChartData,
	})
}
