package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"describer/internal/httpclient"
	"describer/pkg/config"
	errs "describer/pkg/errors"
	"describer/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Paris [OC] (4000x3000)", "paris"},
		{"Sunset in Kyoto", "kyoto"},
		{"Early morning over Lisbon, Portugal [OC][4032x3024]", "lisbon, portugal"},
		{"View of Berlin from the Fernsehturm", "berlin"},
		{"View of Lisbon from the castle", "lisbon"},
		{"Lights of Hong Kong at night", "hong kong"},
		{"Sunset from the top of Montmartre, Paris", "montmartre, paris"},
		{"Kyoto at dusk", "kyoto"},
		{"Foggy morning over Lisbon", "lisbon"},
		{"Sunset in Kyoto [OC] (4000x3000)", "kyoto"},
		{"Night falls over the Alps", "the alps"},
		{"  New   York    City  ", "new york city"},
		{"Dusk in Hong Kong (OC) [5000 x 3333]", "hong kong"},
		{"Berlin", "berlin"},
		{"Shot in", "shot in"},
		{"[OC]", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseQuery(tt.title), tt.title)
	}
}

func newGoogle(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGoogle(config.GeocodeConfig{Endpoint: server.URL, APIKey: "gkey"}, httpclient.New("geocode", time.Second, nil), nil)
}

func TestGoogleLookup(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "kyoto", r.URL.Query().Get("address"))
		assert.Equal(t, "gkey", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"formatted_address":"Kyoto, Japan","geometry":{"location":{"lat":35.0116,"lng":135.7681}}},
			{"formatted_address":"Kyoto Prefecture, Japan","geometry":{"location":{"lat":35.1,"lng":135.5}}}
		]}`))
	})

	loc, err := g.Lookup(context.Background(), "kyoto")
	require.NoError(t, err)
	assert.Equal(t, &models.Location{Name: "Kyoto, Japan", Latitude: 35.0116, Longitude: 135.7681}, loc)
}

func TestGoogleZeroResults(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})

	loc, err := g.Lookup(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestGoogleEmptyQuery(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	loc, err := g.Lookup(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestGoogleRequestDenied(t *testing.T) {
	g := newGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`))
	})

	_, err := g.Lookup(context.Background(), "paris")
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
}

type countingGeocoder struct {
	calls int
	loc   *models.Location
	err   error
}

func (c *countingGeocoder) Lookup(ctx context.Context, query string) (*models.Location, error) {
	c.calls++
	return c.loc, c.err
}

func TestCachedLookup(t *testing.T) {
	inner := &countingGeocoder{loc: &models.Location{Name: "Paris, France", Latitude: 48.85, Longitude: 2.35}}
	c, err := NewCached(inner, 2)
	require.NoError(t, err)

	first, err := c.Lookup(context.Background(), "paris")
	require.NoError(t, err)
	second, err := c.Lookup(context.Background(), "paris")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)

	second.Name = "mutated"
	third, _ := c.Lookup(context.Background(), "paris")
	assert.Equal(t, "Paris, France", third.Name)
}

func TestCachedMissesAreCachedErrorsAreNot(t *testing.T) {
	inner := &countingGeocoder{}
	c, err := NewCached(inner, 0)
	require.NoError(t, err)

	_, _ = c.Lookup(context.Background(), "atlantis")
	_, _ = c.Lookup(context.Background(), "atlantis")
	assert.Equal(t, 1, inner.calls)

	inner.err = errors.New("boom")
	_, err = c.Lookup(context.Background(), "el dorado")
	assert.Error(t, err)
	_, _ = c.Lookup(context.Background(), "el dorado")
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 1, c.Len())
}
