package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dharmateja03/CalBot/server/service/scheduler"
	"github.com/dharmateja03/CalBot/store"
)

// PreferencesService reads and writes per-user scheduling preferences.
type PreferencesService struct {
	Store *store.Store
}

type preferencesPayload struct {
	WorkHoursStart string `json:"work_hours_start"`
	WorkHoursEnd   string `json:"work_hours_end"`
	BreakStart     string `json:"break_start"`
	BreakEnd       string `json:"break_end"`
	Timezone       string `json:"timezone"`
}

// GetPreferences returns the user's saved preferences, falling back to
// the defaults for users who never configured any.
func (s *PreferencesService) GetPreferences(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	saved, err := s.Store.GetUserPreferences(c.Request().Context(), &store.FindUserPreferences{UserID: &userID})
	if err != nil {
		return httpError(err)
	}
	if saved == nil {
		defaults := scheduler.DefaultPreferences()
		return c.JSON(http.StatusOK, preferencesPayload{
			WorkHoursStart: defaults.WorkHoursStart,
			WorkHoursEnd:   defaults.WorkHoursEnd,
			BreakStart:     defaults.BreakStart,
			BreakEnd:       defaults.BreakEnd,
			Timezone:       defaults.Timezone,
		})
	}
	return c.JSON(http.StatusOK, preferencesPayload{
		WorkHoursStart: saved.WorkHoursStart,
		WorkHoursEnd:   saved.WorkHoursEnd,
		BreakStart:     saved.BreakStart,
		BreakEnd:       saved.BreakEnd,
		Timezone:       saved.Timezone,
	})
}

// PutPreferences validates and saves the user's preferences. Omitted
// fields keep their defaults.
func (s *PreferencesService) PutPreferences(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	payload := &preferencesPayload{}
	if err := c.Bind(payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}

	merged := scheduler.DefaultPreferences()
	if payload.WorkHoursStart != "" {
		merged.WorkHoursStart = payload.WorkHoursStart
	}
	if payload.WorkHoursEnd != "" {
		merged.WorkHoursEnd = payload.WorkHoursEnd
	}
	if payload.BreakStart != "" {
		merged.BreakStart = payload.BreakStart
	}
	if payload.BreakEnd != "" {
		merged.BreakEnd = payload.BreakEnd
	}
	if payload.Timezone != "" {
		merged.Timezone = payload.Timezone
	}
	if err := merged.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	saved, err := s.Store.UpsertUserPreferences(c.Request().Context(), &store.UpsertUserPreferences{
		UserID:         userID,
		WorkHoursStart: merged.WorkHoursStart,
		WorkHoursEnd:   merged.WorkHoursEnd,
		BreakStart:     merged.BreakStart,
		BreakEnd:       merged.BreakEnd,
		Timezone:       merged.Timezone,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, preferencesPayload{
		WorkHoursStart: saved.WorkHoursStart,
		WorkHoursEnd:   saved.WorkHoursEnd,
		BreakStart:     saved.BreakStart,
		BreakEnd:       saved.BreakEnd,
		Timezone:       saved.Timezone,
	})
}
