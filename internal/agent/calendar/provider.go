package calendar

import (
	"fmt"
	"strings"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

const (
	ProviderNone   = "none"
	ProviderGoogle = "google"
	ProviderEmail  = "email"
)

// New selects the booking backend. It returns nil for the none provider.
func New(cfg model.CalendarConfig, smtp model.SMTPConfig) (model.CalendarBooking, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderGoogle:
		if cfg.AccessToken == "" {
			return nil, fmt.Errorf("google calendar: access token is required")
		}
		return NewGoogleCalendar(cfg.BaseURL, cfg.CalendarID, cfg.AccessToken, 0), nil
	case ProviderEmail:
		if smtp.Host == "" || smtp.FromEmail == "" {
			return nil, fmt.Errorf("email invites: smtp host and from address are required")
		}
		return NewEmailInvite(smtp), nil
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", cfg.Provider)
	}
}
