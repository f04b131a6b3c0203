package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dharmateja03/CalBot/server/service/scheduler"
	"github.com/dharmateja03/CalBot/store"
)

// ChatService handles conversational turns and chat history.
type ChatService struct {
	Store  *store.Store
	Engine *scheduler.Engine
}

type postTurnRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type turnResponse struct {
	Reply              string          `json:"reply"`
	ScheduledEvents    []eventResponse `json:"scheduled_events"`
	NeedsClarification bool            `json:"needs_clarification"`
	Questions          []string        `json:"questions,omitempty"`
	HasConflict        bool            `json:"has_conflict"`
	Conflict           *eventResponse  `json:"conflict,omitempty"`
}

type eventResponse struct {
	UID         string    `json:"uid"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Source      string    `json:"source"`
}

// PostTurn processes one conversational turn for a user.
func (s *ChatService) PostTurn(c echo.Context) error {
	request := &postTurnRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if request.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	response, err := s.Engine.ProcessTurn(c.Request().Context(), &scheduler.TurnRequest{
		UserID:    request.UserID,
		Text:      request.Text,
		Timestamp: time.Now(),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, convertTurnResponse(response))
}

type historyMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GetHistory returns the user's recent chat messages in order. The
// days query parameter bounds how far back to look (default 5).
func (s *ChatService) GetHistory(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	days := 5
	if daysParam := c.QueryParam("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = parsed
	}
	after := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	messages, err := s.Store.ListChatMessages(c.Request().Context(), &store.FindChatMessage{
		UserID:         &userID,
		CreatedTsAfter: &after,
	})
	if err != nil {
		return httpError(err)
	}

	history := make([]historyMessage, 0, len(messages))
	for _, message := range messages {
		history = append(history, historyMessage{
			Role:      message.Role,
			Content:   message.Content,
			CreatedAt: time.Unix(message.CreatedTs, 0).UTC(),
		})
	}
	return c.JSON(http.StatusOK, history)
}

// DeleteHistory clears the user's chat history.
func (s *ChatService) DeleteHistory(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	if err := s.Store.DeleteChatMessages(c.Request().Context(), &store.DeleteChatMessage{UserID: userID}); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func convertTurnResponse(response *scheduler.TurnResponse) *turnResponse {
	converted := &turnResponse{
		Reply:              response.Reply,
		ScheduledEvents:    make([]eventResponse, 0, len(response.ScheduledEvents)),
		NeedsClarification: response.NeedsClarification,
		Questions:          response.Questions,
		HasConflict:        response.HasConflict,
	}
	for _, event := range response.ScheduledEvents {
		converted.ScheduledEvents = append(converted.ScheduledEvents, convertEvent(event))
	}
	if response.Conflict != nil {
		conflict := convertEvent(response.Conflict)
		converted.Conflict = &conflict
	}
	return converted
}

func convertEvent(event *scheduler.Event) eventResponse {
	return eventResponse{
		UID:         event.UID,
		Title:       event.Title,
		Description: event.Description,
		Start:       event.Start,
		End:         event.End,
		Source:      event.Source,
	}
}
