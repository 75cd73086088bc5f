package model

import (
	"strconv"
	"time"
)

// FeedEvent is a single feature from the polled event feed.
type FeedEvent struct {
	ID        string
	Latitude  float64
	Longitude float64
	Depth     float64
	Magnitude *float64 // nil when the feed has not published one yet
	Place     string
	Time      time.Time
	URL       string
}

// MagnitudeText renders the magnitude, or "unknown" when absent.
func (e FeedEvent) MagnitudeText() string {
	if e.Magnitude == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*e.Magnitude, 'f', -1, 64)
}
