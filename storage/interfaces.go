package storage

import (
	"context"

	"yelp-pins/models"
)

// RawWriter persists the intermediate text dump of fetched results.
type RawWriter interface {
	WriteLines(lines []string) error
	Close() error
}

// PinWriter is the output sink pins are serialized to, one at a time.
type PinWriter interface {
	WritePin(pin *models.Pin) error
	Close() error
}

// PinStore is a remote record store that receives a run's pins in one batch.
type PinStore interface {
	Store(ctx context.Context, runID string, pins []*models.Pin) (int, error)
	Close() error
}
