package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"guildgate/internal/model"
)

// DefaultFeedURL is the USGS feed of all events in the past hour.
const DefaultFeedURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson"

// Source yields the current batch of feed events.
type Source interface {
	Fetch(ctx context.Context) ([]model.FeedEvent, error)
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID       string `json:"id"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Mag   *float64 `json:"mag"`
		Place string   `json:"place"`
		Time  int64    `json:"time"`
		URL   string   `json:"url"`
	} `json:"properties"`
}

// StatusError is returned for a non-200 feed response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed status %d", e.Code)
}

// Client fetches a GeoJSON feature collection over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient builds a Client. timeout bounds every fetch.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultFeedURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch implements Source. Features without an id or a point are skipped.
func (c *Client) Fetch(ctx context.Context) ([]model.FeedEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var fc featureCollection
	if err := json.NewDecoder(io.LimitReader(resp.Body, 32<<20)).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	events := make([]model.FeedEvent, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.ID == "" || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		ev := model.FeedEvent{
			ID:        f.ID,
			Longitude: f.Geometry.Coordinates[0],
			Latitude:  f.Geometry.Coordinates[1],
			Magnitude: f.Properties.Mag,
			Place:     f.Properties.Place,
			Time:      time.UnixMilli(f.Properties.Time).UTC(),
			URL:       f.Properties.URL,
		}
		if len(f.Geometry.Coordinates) > 2 {
			ev.Depth = f.Geometry.Coordinates[2]
		}
		events = append(events, ev)
	}
	return events, nil
}
