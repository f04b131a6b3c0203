// Package v1 exposes the JSON API: conversational turns, chat
// history, preferences, and calendar queries.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/dharmateja03/CalBot/internal/profile"
	"github.com/dharmateja03/CalBot/server/service/scheduler"
	"github.com/dharmateja03/CalBot/store"
)

type APIV1Service struct {
	ChatService        *ChatService
	PreferencesService *PreferencesService
	EventService       *EventService

	Profile *profile.Profile
	Store   *store.Store
	Engine  *scheduler.Engine
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, engine *scheduler.Engine) *APIV1Service {
	service := &APIV1Service{
		Profile: profile,
		Store:   store,
		Engine:  engine,
	}
	service.ChatService = &ChatService{Store: store, Engine: engine}
	service.PreferencesService = &PreferencesService{Store: store}
	service.EventService = &EventService{Engine: engine}
	return service
}

// RegisterRoutes attaches all v1 routes to the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	group := e.Group("/api/v1")

	group.POST("/chat", s.ChatService.PostTurn)
	group.GET("/chat/history", s.ChatService.GetHistory)
	group.DELETE("/chat/history", s.ChatService.DeleteHistory)

	group.GET("/preferences", s.PreferencesService.GetPreferences)
	group.PUT("/preferences", s.PreferencesService.PutPreferences)

	group.GET("/events", s.EventService.ListEvents)
}

// httpError maps scheduler failures onto HTTP statuses. Busy and
// rate-limit signals are retryable 429s; collaborator problems are
// upstream errors, not client mistakes.
func httpError(err error) *echo.HTTPError {
	var validation *scheduler.ValidationError
	switch {
	case errors.As(err, &validation):
		return echo.NewHTTPError(http.StatusBadRequest, validation.Error())
	case errors.Is(err, scheduler.ErrBusy), errors.Is(err, scheduler.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, scheduler.ErrNoAvailability):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, scheduler.ErrMaxClarificationExceeded):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, scheduler.ErrCollaboratorTimeout):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "an upstream service timed out, please retry").SetInternal(err)
	case errors.Is(err, scheduler.ErrCollaboratorFailure):
		return echo.NewHTTPError(http.StatusBadGateway, "an upstream service failed, please retry").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
