package services

import (
	"encoding/json"
	"regexp"
	"strconv"

	"yelp-pins/metrics"
	"yelp-pins/models"
	"yelp-pins/storage"
	"yelp-pins/utils"
)

// jsonNumber matches a JSON number literal. strconv.ParseFloat also takes
// "+1", "nan", "inf" and hex floats, which json.Number refuses to encode.
var jsonNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// BuildPin assembles a pin from extracted fields. Rating, name, category
// and coordinates are copied verbatim; likes start at 0 and reviews hold a
// single empty placeholder. Coordinates that are not finite JSON numbers
// make the entry malformed.
func BuildPin(f models.ExtractedFields, pinType models.PinType, linkedAccount string) (*models.Pin, error) {
	if !validCoordinate(f.Latitude) {
		return nil, &models.MalformedEntryError{Field: "latitude", Err: models.ErrInvalidCoordinate}
	}
	if !validCoordinate(f.Longitude) {
		return nil, &models.MalformedEntryError{Field: "longitude", Err: models.ErrInvalidCoordinate}
	}

	return &models.Pin{
		Rating:      f.Rating,
		PinType:     pinType,
		Name:        f.Name,
		Description: f.Category,
		Likes:       0,
		Coordinate: models.Coordinate{
			Latitude:  json.Number(f.Latitude),
			Longitude: json.Number(f.Longitude),
		},
		LinkedAccount: linkedAccount,
		Reviews:       []models.Review{{}},
		SourceID:      f.BusinessID,
	}, nil
}

func validCoordinate(s string) bool {
	if !jsonNumber.MatchString(s) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Emitter builds pins and writes them to the output sink in arrival order.
type Emitter struct {
	writer        storage.PinWriter
	pinType       models.PinType
	linkedAccount string
	logger        *utils.Logger
	metrics       *metrics.Metrics

	pins []*models.Pin
}

// NewEmitter creates an Emitter writing to w.
func NewEmitter(w storage.PinWriter, pinType models.PinType, linkedAccount string, logger *utils.Logger, m *metrics.Metrics) *Emitter {
	return &Emitter{
		writer:        w,
		pinType:       pinType,
		linkedAccount: linkedAccount,
		logger:        logger.With("emitter"),
		metrics:       m,
	}
}

// Emit builds one pin and appends it to the sink.
func (e *Emitter) Emit(f models.ExtractedFields) error {
	pin, err := BuildPin(f, e.pinType, e.linkedAccount)
	if err != nil {
		return err
	}
	if err := e.writer.WritePin(pin); err != nil {
		return err
	}
	e.pins = append(e.pins, pin)
	if e.metrics != nil {
		e.metrics.PinsEmitted.Inc()
	}
	e.logger.Debug("%s (%s) rating=%s at %s,%s", pin.Name, pin.Description, pin.Rating,
		pin.Coordinate.Latitude, pin.Coordinate.Longitude)
	return nil
}

// Pins returns every pin emitted so far.
func (e *Emitter) Pins() []*models.Pin {
	return e.pins
}
