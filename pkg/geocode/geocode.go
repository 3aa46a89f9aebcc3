// Package geocode resolves a free text place name to coordinates. Lookups
// are best effort: the bot posts without a location when they fail.
package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"describer/internal/httpclient"
	"describer/pkg/config"
	errs "describer/pkg/errors"
	"describer/pkg/logger"
	"describer/pkg/models"
)

// Geocoder resolves a query. A nil location with a nil error means no match.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (*models.Location, error)
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Google talks to the Google Geocoding JSON API
type Google struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	logger   logger.Logger
}

// NewGoogle creates a Google geocoder
func NewGoogle(cfg config.GeocodeConfig, client *httpclient.Client, log logger.Logger) *Google {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Google{client: client, endpoint: cfg.Endpoint, apiKey: cfg.APIKey, logger: log}
}

// Lookup returns the first result's formatted address and coordinates
func (g *Google) Lookup(ctx context.Context, query string) (*models.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("address", query)
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	var resp geocodeResponse
	if err := g.client.GetJSON(ctx, g.endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	case "OVER_QUERY_LIMIT":
		return nil, errs.New(g.client.Service(), errs.ErrorTypeRateLimit, 0, resp.ErrorMessage)
	case "REQUEST_DENIED":
		return nil, errs.New(g.client.Service(), errs.ErrorTypeAuth, 0, resp.ErrorMessage)
	default:
		return nil, errs.New(g.client.Service(), errs.ErrorTypeUnknown, 0, fmt.Sprintf("status %s: %s", resp.Status, resp.ErrorMessage))
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	first := resp.Results[0]
	loc := &models.Location{
		Name:      first.FormattedAddress,
		Latitude:  first.Geometry.Location.Lat,
		Longitude: first.Geometry.Location.Lng,
	}
	g.logger.DebugWithFields("geocoded", map[string]interface{}{
		"query": query,
		"name":  loc.Name,
		"lat":   loc.Latitude,
		"long":  loc.Longitude,
	})
	return loc, nil
}
