package model

import "time"

// AmplifierTracking tracks periodic maintenance tests of one item.
type AmplifierTracking struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	TestType     string    `json:"test_type"`
	IntervalDays int       `json:"interval_days"`
	LastUpdated  time.Time `json:"last_updated"`
	Results      string    `json:"results"`

	// Joined fields (not always populated).
	ItemName  string `json:"item_name,omitempty"`
	ItemPalga string `json:"item_palga,omitempty"`
}

// NextDue returns when the next test is due.
func (a *AmplifierTracking) NextDue() time.Time {
	return a.LastUpdated.AddDate(0, 0, a.IntervalDays)
}

// Due reports whether the test interval has elapsed at now.
func (a *AmplifierTracking) Due(now time.Time) bool {
	return !now.Before(a.NextDue())
}
