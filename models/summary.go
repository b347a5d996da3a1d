package models

// PinSummary holds the figures reported at the end of a build.
type PinSummary struct {
	TotalPins     int
	Malformed     int
	RatedPins     int
	UnratedPins   int
	AverageRating float64
	TopRated      []*Pin
	ByCategory    map[string]int
}
