package sharing

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medagg/medagg/internal/domain/patient"
	"github.com/medagg/medagg/internal/domain/summary"
)

var dobPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patient/:id/create-token", h.CreateToken)
	api.GET("/patient/:id/tokens", h.ListTokens)
	api.GET("/patient/:id/access-logs", h.AccessLogs)
	api.GET("/patient/lookup", h.LookupPatient)
}

// RegisterProviderRoutes registers the provider access route on its own
// group so the server can rate limit it separately.
func (h *Handler) RegisterProviderRoutes(api *echo.Group) {
	api.POST("/provider/access", h.ProviderAccess)
}

func (h *Handler) CreateToken(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form data")
	}

	expiryHours := 0
	if raw := c.FormValue("expiry_hours"); raw != "" {
		expiryHours, err = strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid expiry_hours")
		}
	}

	res, err := h.svc.Issue(c.Request().Context(), id, form["scope"], expiryHours)
	if err != nil {
		var scopeErr *ScopeError
		switch {
		case errors.Is(err, patient.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		case errors.As(err, &scopeErr):
			return echo.NewHTTPError(http.StatusBadRequest, scopeErr.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to create token")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"token":        res.Token.Token,
		"scope":        res.Token.Scope,
		"expires_at":   res.Token.ExpiresAt,
		"expiry_hours": res.ExpiryHours,
	})
}

func (h *Handler) ListTokens(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	tokens, err := h.svc.ListTokens(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load tokens")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"tokens":  tokens,
	})
}

func (h *Handler) AccessLogs(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	logs, err := h.svc.AccessLogs(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load access logs")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"logs":    logs,
	})
}

func (h *Handler) ProviderAccess(c echo.Context) error {
	token := c.FormValue("token")
	patientName := c.FormValue("patient_name")
	dateOfBirth := c.FormValue("date_of_birth")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Token is required")
	}
	if patientName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Patient name is required")
	}

	// Claimed date of birth is validated before the token is even looked
	// up, so malformed requests reveal nothing about token validity.
	if !dobPattern.MatchString(dateOfBirth) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid date of birth format. Use YYYY-MM-DD")
	}
	dob, err := time.Parse("2006-01-02", dateOfBirth)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid date of birth. Use YYYY-MM-DD format")
	}
	if dob.After(time.Now()) {
		return echo.NewHTTPError(http.StatusBadRequest, "Date of birth cannot be in the future")
	}

	view, err := h.svc.Authorize(c.Request().Context(), AccessRequest{
		Token:        token,
		PatientName:  patientName,
		DateOfBirth:  dateOfBirth,
		ProviderName: c.FormValue("provider_name"),
		Organization: c.FormValue("organization"),
		ViewerIP:     c.RealIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Invalid or expired token")
		case errors.Is(err, ErrTokenExpired):
			return echo.NewHTTPError(http.StatusForbidden, "Token has expired")
		case IsIdentityError(err):
			return echo.NewHTTPError(http.StatusForbidden, "Identity verification failed")
		case errors.Is(err, patient.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to authorize access")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":       true,
		"patient_name":  view.Patient.Name,
		"date_of_birth": view.Patient.DateOfBirth,
		"scope":         view.Scope,
		"records":       view.Records,
		"summary":       view.Summary,
		"chart_data":    view.ChartData,
		"disclaimer":    summary.Disclaimer,
	})
}

func (h *Handler) LookupPatient(c echo.Context) error {
	name := c.QueryParam("name")

	view, err := h.svc.Lookup(c.Request().Context(), name)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"success": false,
				"message": "Patient not found",
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to look up patient")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":     true,
		"patient":     view.Patient,
		"records":     view.Records,
		"summary":     view.Summary,
		"chart_data":  view.ChartData,
		"tokens":      view.Tokens,
		"access_logs": view.Logs,
	})
}
