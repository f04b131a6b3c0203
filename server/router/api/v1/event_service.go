package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dharmateja03/CalBot/server/service/scheduler"
)

// EventService exposes the user's upcoming events as the scheduling
// engine sees them.
type EventService struct {
	Engine *scheduler.Engine
}

// ListEvents returns events in the engine's lookahead window. An
// optional days query parameter narrows the window.
func (s *EventService) ListEvents(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	snap, err := s.Engine.Availability().Snapshot(c.Request().Context(), userID, time.Now())
	if err != nil {
		return httpError(err)
	}

	events := snap.Events
	if daysParam := c.QueryParam("days"); daysParam != "" {
		days, err := strconv.Atoi(daysParam)
		if err != nil || days <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		cutoff := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
		filtered := events[:0:0]
		for _, event := range events {
			if event.Start.Before(cutoff) {
				filtered = append(filtered, event)
			}
		}
		events = filtered
	}

	list := make([]eventResponse, 0, len(events))
	for _, event := range events {
		list = append(list, convertEvent(event))
	}
	return c.JSON(http.StatusOK, list)
}
