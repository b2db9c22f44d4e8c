package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/rsvp/internal/services"
)

// Location resolves the configured display timezone, defaulting to UTC.
func (c EventsConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("events.timezone: %w", err)
	}
	return loc, nil
}

// ServicePlatforms converts the configured platforms for the social service.
func (c SocialConfig) ServicePlatforms() []services.SocialPlatform {
	out := make([]services.SocialPlatform, 0, len(c.Platforms))
	for _, p := range c.Platforms {
		out = append(out, services.SocialPlatform{
			Name: strings.TrimSpace(p.Name),
			Icon: strings.TrimSpace(p.Icon),
			URL:  strings.TrimSpace(p.URL),
			Type: strings.ToLower(strings.TrimSpace(p.Type)),
		})
	}
	return out
}
