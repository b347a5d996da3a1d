package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"yelp-pins/models"
	"yelp-pins/utils"
)

// openAppend opens path for appending, creating it and any missing parent
// directories.
func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &models.SinkWriteError{Sink: path, Err: fmt.Errorf("create output dir: %w", err)}
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &models.SinkWriteError{Sink: path, Err: err}
	}
	return f, nil
}

// RawDumpWriter appends fetched results to the intermediate text file,
// one entry per line.
type RawDumpWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewRawDumpWriter opens (or creates) the dump file in append mode.
func NewRawDumpWriter(path string) (*RawDumpWriter, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &RawDumpWriter{path: path, file: f}, nil
}

// WriteLines appends all lines in a single write.
func (w *RawDumpWriter) WriteLines(lines []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(lines) == 0 {
		return nil
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if _, err := w.file.WriteString(b.String()); err != nil {
		return &models.SinkWriteError{Sink: w.path, Err: err}
	}
	return nil
}

func (w *RawDumpWriter) Close() error {
	if err := w.file.Close(); err != nil {
		return &models.SinkWriteError{Sink: w.path, Err: err}
	}
	return nil
}

// JSONArrayWriter appends pins to a JSON-array text file. The opening
// bracket is written on construction and the closing one on Close.
//
// With trailingComma set every entry is followed by ",\n", so a non-empty
// array ends in ",\n]", the layout existing pin loaders read. Strict JSON
// consumers need it turned off.
type JSONArrayWriter struct {
	mu            sync.Mutex
	path          string
	file          *os.File
	trailingComma bool
	count         int
}

// NewJSONArrayWriter opens path in append mode and writes "[".
func NewJSONArrayWriter(path string, trailingComma bool) (*JSONArrayWriter, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString("["); err != nil {
		_ = f.Close()
		return nil, &models.SinkWriteError{Sink: path, Err: err}
	}
	return &JSONArrayWriter{path: path, file: f, trailingComma: trailingComma}, nil
}

// WritePin appends one pin object.
func (w *JSONArrayWriter) WritePin(pin *models.Pin) error {
	data, err := MarshalPin(pin)
	if err != nil {
		return &models.SinkWriteError{Sink: w.path, Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var entry string
	switch {
	case w.trailingComma:
		entry = string(data) + ",\n"
	case w.count > 0:
		entry = ",\n" + string(data)
	default:
		entry = string(data)
	}
	if _, err := w.file.WriteString(entry); err != nil {
		return &models.SinkWriteError{Sink: w.path, Err: err}
	}
	w.count++
	return nil
}

// Close writes "]" and closes the file.
func (w *JSONArrayWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.WriteString("]"); err != nil {
		_ = w.file.Close()
		return &models.SinkWriteError{Sink: w.path, Err: err}
	}
	if err := w.file.Close(); err != nil {
		return &models.SinkWriteError{Sink: w.path, Err: err}
	}
	return nil
}

// MarshalPin encodes a pin without HTML escaping so names like
// "Coffee & Tea" stay readable.
func MarshalPin(pin *models.Pin) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(pin); err != nil {
		return nil, fmt.Errorf("encode pin %q: %w", pin.Name, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RecordWriter appends each pin as a generic key/value record, one
// Python-style dict literal per line.
type RecordWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewRecordWriter opens path in append mode.
func NewRecordWriter(path string) (*RecordWriter, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &RecordWriter{path: path, file: f}, nil
}

func (w *RecordWriter) WritePin(pin *models.Pin) error {
	line := utils.ReprEncoder{}.Encode(PinRecord(pin)) + "\n"

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.WriteString(line); err != nil {
		return &models.SinkWriteError{Sink: w.path, Err: err}
	}
	return nil
}

func (w *RecordWriter) Close() error {
	if err := w.file.Close(); err != nil {
		return &models.SinkWriteError{Sink: w.path, Err: err}
	}
	return nil
}

// PinRecord lays a pin out as an ordered key/value record.
func PinRecord(pin *models.Pin) utils.Dict {
	reviews := make([]any, 0, len(pin.Reviews))
	for _, r := range pin.Reviews {
		reviews = append(reviews, utils.Dict{
			{Key: "linkedAccount", Value: strOrNil(r.LinkedAccount)},
			{Key: "text", Value: strOrNil(r.Text)},
			{Key: "createDate", Value: dateOrNil(r)},
		})
	}
	return utils.Dict{
		{Key: "rating", Value: pin.Rating},
		{Key: "pinType", Value: int(pin.PinType)},
		{Key: "name", Value: pin.Name},
		{Key: "description", Value: pin.Description},
		{Key: "likes", Value: pin.Likes},
		{Key: "coordinate", Value: utils.Dict{
			{Key: "latitude", Value: pin.Coordinate.Latitude},
			{Key: "longitude", Value: pin.Coordinate.Longitude},
		}},
		{Key: "linkedAccount", Value: pin.LinkedAccount},
		{Key: "reviews", Value: reviews},
	}
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func dateOrNil(r models.Review) any {
	if r.CreateDate == nil {
		return nil
	}
	return r.CreateDate.Format("2006-01-02T15:04:05.000Z07:00")
}
