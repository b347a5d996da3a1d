package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDelimiterNotFound is wrapped by MalformedEntryError when the
	// delimiter extractor cannot find an expected marker.
	ErrDelimiterNotFound = errors.New("delimiter not found")
	// ErrFieldMissing is wrapped by MalformedEntryError when a keyed field
	// is absent or has the wrong shape.
	ErrFieldMissing = errors.New("field missing")
	// ErrInvalidCoordinate is wrapped when a coordinate is not a number.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// FetchError reports a failed search request for one location.
type FetchError struct {
	Location   SearchLocation
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch (%v,%v): status %d: %v",
			e.Location.Latitude, e.Location.Longitude, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch (%v,%v): %v", e.Location.Latitude, e.Location.Longitude, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedEntryError reports a raw result line that could not be turned
// into a pin. Line is 1-based.
type MalformedEntryError struct {
	Line      int
	Field     string
	Delimiter string
	Err       error
}

func (e *MalformedEntryError) Error() string {
	if e.Delimiter != "" {
		return fmt.Sprintf("line %d: %s: %v: %q", e.Line, e.Field, e.Err, e.Delimiter)
	}
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Field, e.Err)
}

func (e *MalformedEntryError) Unwrap() error { return e.Err }

// SinkWriteError reports a failure writing to one of the file or store sinks.
type SinkWriteError struct {
	Sink string
	Err  error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }
