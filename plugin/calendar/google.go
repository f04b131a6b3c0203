package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleProvider commits and reads events through the Google Calendar
// API. Each user maps to a token file token-<userID>.json under the
// configured token directory, obtained out of band via the OAuth
// device/desktop flow.
type GoogleProvider struct {
	oauth    *oauth2.Config
	tokenDir string
	logger   *slog.Logger
}

// NewGoogleProvider creates a Google Calendar backed provider.
func NewGoogleProvider(clientID, clientSecret, tokenDir string, logger *slog.Logger) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("google calendar requires client id and client secret")
	}
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{gcalendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
		tokenDir: tokenDir,
		logger:   logger,
	}, nil
}

// ExchangeAuthCode completes the OAuth flow for a user and persists
// the resulting token for later API calls.
func (p *GoogleProvider) ExchangeAuthCode(ctx context.Context, userID, authCode string) error {
	token, err := p.oauth.Exchange(ctx, authCode)
	if err != nil {
		return errors.Wrap(err, "failed to exchange auth code")
	}
	return p.saveToken(userID, token)
}

func (p *GoogleProvider) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*Event, error) {
	service, err := p.serviceFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := service.Events.List("primary").
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.UTC().Format(time.RFC3339)).
		TimeMax(to.UTC().Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list google calendar events")
	}

	p.logger.Debug("fetched google calendar events", "user", userID, "count", len(result.Items))
	events := make([]*Event, 0, len(result.Items))
	for _, item := range result.Items {
		// All-day events carry a Date instead of a DateTime; the
		// scheduler only reasons about timed events.
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			continue
		}
		events = append(events, &Event{
			UID:         item.Id,
			UserID:      userID,
			Title:       item.Summary,
			Description: item.Description,
			Start:       start.UTC(),
			End:         end.UTC(),
			Source:      eventSource(item),
		})
	}
	return events, nil
}

func (p *GoogleProvider) CreateEvent(ctx context.Context, create *CreateEventRequest) (*Event, error) {
	service, err := p.serviceFor(ctx, create.UserID)
	if err != nil {
		return nil, err
	}

	inserted, err := service.Events.Insert("primary", &gcalendar.Event{
		Summary:     create.Title,
		Description: create.Description,
		Start:       &gcalendar.EventDateTime{DateTime: create.Start.UTC().Format(time.RFC3339)},
		End:         &gcalendar.EventDateTime{DateTime: create.End.UTC().Format(time.RFC3339)},
		ExtendedProperties: &gcalendar.EventExtendedProperties{
			Private: map[string]string{"calbotSource": create.Source},
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "failed to insert google calendar event")
	}

	p.logger.Info("created google calendar event", "user", create.UserID, "uid", inserted.Id, "title", create.Title)
	return &Event{
		UID:         inserted.Id,
		UserID:      create.UserID,
		Title:       create.Title,
		Description: create.Description,
		Start:       create.Start.UTC(),
		End:         create.End.UTC(),
		Source:      create.Source,
	}, nil
}

func (p *GoogleProvider) DeleteEvent(ctx context.Context, userID, uid string) error {
	service, err := p.serviceFor(ctx, userID)
	if err != nil {
		return err
	}

	if err := service.Events.Delete("primary", uid).Context(ctx).Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 404 || apiErr.Code == 410) {
			return ErrNotFound
		}
		return errors.Wrap(err, "failed to delete google calendar event")
	}
	return nil
}

func (p *GoogleProvider) serviceFor(ctx context.Context, userID string) (*gcalendar.Service, error) {
	token, err := p.tokenFor(userID)
	if err != nil {
		return nil, errors.Wrapf(err, "no google token for user %s, complete the auth flow first", userID)
	}
	service, err := gcalendar.NewService(ctx, option.WithHTTPClient(p.oauth.Client(ctx, token)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create google calendar service")
	}
	return service, nil
}

func (p *GoogleProvider) tokenFor(userID string) (*oauth2.Token, error) {
	f, err := os.Open(p.tokenPath(userID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, errors.Wrap(err, "failed to decode token file")
	}
	return token, nil
}

func (p *GoogleProvider) saveToken(userID string, token *oauth2.Token) error {
	if err := os.MkdirAll(p.tokenDir, 0o700); err != nil {
		return errors.Wrap(err, "failed to create token directory")
	}
	f, err := os.Create(p.tokenPath(userID))
	if err != nil {
		return errors.Wrap(err, "failed to create token file")
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func (p *GoogleProvider) tokenPath(userID string) string {
	// User ids come from external channels; keep them to a single
	// path element.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(userID)
	return filepath.Join(p.tokenDir, fmt.Sprintf("token-%s.json", safe))
}

func eventSource(item *gcalendar.Event) string {
	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		if source := item.ExtendedProperties.Private["calbotSource"]; source != "" {
			return source
		}
	}
	return "user"
}
