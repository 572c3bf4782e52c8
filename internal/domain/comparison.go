package domain

import "slices"

// LocationScore is one scored location inside a comparison.
type LocationScore struct {
	Location      string               `json:"location"`
	Score         int                  `json:"score"`
	Metrics       WeatherMetrics       `json:"weather_data"`
	Probabilities ExtremeProbabilities `json:"probabilities"`
}

// ComparisonResult is the service's answer to a CompareRequest.
type ComparisonResult struct {
	BestLocation string          `json:"best_location"`
	Entries      []LocationScore `json:"comparison_data"`
	Activity     string          `json:"activity"`
	Date         string          `json:"date"`
}

// Ranked returns the entries ordered by score descending. Ties keep their
// response order. The receiver is not modified.
func (c ComparisonResult) Ranked() []LocationScore {
	ranked := slices.Clone(c.Entries)
	slices.SortStableFunc(ranked, func(a, b LocationScore) int {
		return b.Score - a.Score
	})
	return ranked
}

// Contains reports whether location names one of the entries.
func (c ComparisonResult) Contains(location string) bool {
	for _, e := range c.Entries {
		if e.Location == location {
			return true
		}
	}
	return false
}

// BestLocation returns the location with the highest score, the first one in
// order on ties. It returns "" for an empty slice.
func BestLocation(entries []LocationScore) string {
	if len(entries) == 0 {
		return ""
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Score > best.Score {
			best = e
		}
	}
	return best.Location
}
