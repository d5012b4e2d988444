package model

import "time"

// Rating bounds for a single review.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a renter's rating of a unit.  Deleting a review clears Active;
// inactive reviews never count towards the unit aggregate.
type Review struct {
	ID        uint64
	AuthorID  uint64
	UnitID    uint64
	Review    string
	Rating    int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReviewPatch carries the fields of a partial review update.
type ReviewPatch struct {
	Review *string
	Rating *int
}

// RatingSummary is the aggregate written back onto a unit.
type RatingSummary struct {
	Average  float64
	Quantity int
}
