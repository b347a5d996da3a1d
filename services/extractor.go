package services

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"yelp-pins/metrics"
	"yelp-pins/models"
	"yelp-pins/utils"
)

// candidateMarker selects the lines that hold a result entry.
const candidateMarker = "rating"

// Entry is one business found on a line: its fields, or the reason they
// could not be read.
type Entry struct {
	Fields models.ExtractedFields
	Err    error
}

// Extractor turns one candidate line of the raw dump into entries. A line
// that cannot be read at all is reported through the returned error; a bad
// business among good ones is reported in its own Entry. Both carry a
// *models.MalformedEntryError and the caller fills in the line number.
type Extractor interface {
	Extract(line string) ([]Entry, error)
}

// Delimiters of the legacy repr dump, in the order they are searched.
// afterCatUnrated and afterLongitude close the last field of their branch.
// The legacy builder read up to them without checking they were there; a
// missing one is malformed here.
const (
	claimedPrefix   = "{u'is_claimed': True, u'rating': "
	unclaimedPrefix = "{u'is_claimed': False, u'rating': "
	claimedProbe    = "{u'is_claimed': True"

	afterRating     = ", u'mobile_url'"
	beforeName      = "'name': u'"
	afterName       = "', u'rating_img_url_small':"
	beforeCategory  = "u'categories':"
	afterCategory   = ", u'display_phone'"
	beforeID        = "u'id': u'"
	afterIDRated    = "', u'snippet_image_url'"
	afterIDUnrated  = "', u'categories'"
	afterCatUnrated = "u'distance'"
	beforeLatitude  = "latitude': "
	beforeLongitude = ", u'longitude': "
	afterLongitude  = "}, u'state_code"
)

// unratedRating is the rating text of businesses whose payload puts the
// location block before id and categories.
const unratedRating = "0.0"

// DelimiterExtractor recovers fields by slicing the line on fixed literal
// markers. It only understands the repr dump layout and takes the first
// business on the line.
//
// The rating text decides the branch: "0.0" means the unrated payload
// shape, where latitude/longitude come before id and category. Any other
// value takes the rated shape (category, id, then coordinates).
type DelimiterExtractor struct{}

func (DelimiterExtractor) Extract(line string) ([]Entry, error) {
	f, err := extractDelimited(line)
	if err != nil {
		return nil, err
	}
	return []Entry{{Fields: f}}, nil
}

// splitPair mirrors s.split(delim)[0:2]: the text before the first
// occurrence and the text between the first and second occurrence.
func splitPair(s, delim, field string) (string, string, error) {
	parts := strings.Split(s, delim)
	if len(parts) < 2 {
		return "", "", &models.MalformedEntryError{Field: field, Delimiter: delim, Err: models.ErrDelimiterNotFound}
	}
	return parts[0], parts[1], nil
}

func extractDelimited(line string) (models.ExtractedFields, error) {
	var f models.ExtractedFields

	prefix := unclaimedPrefix
	if strings.Contains(line, claimedProbe) {
		prefix = claimedPrefix
	}

	_, seg, err := splitPair(line, prefix, "rating")
	if err != nil {
		return f, err
	}
	rating, rest, err := splitPair(seg, afterRating, "rating")
	if err != nil {
		return f, err
	}
	f.Rating = rating

	if _, seg, err = splitPair(rest, beforeName, "name"); err != nil {
		return f, err
	}
	if f.Name, rest, err = splitPair(seg, afterName, "name"); err != nil {
		return f, err
	}

	if rating == unratedRating {
		if rest, err = extractCoordinates(&f, rest); err != nil {
			return f, err
		}
		if _, seg, err = splitPair(rest, beforeID, "id"); err != nil {
			return f, err
		}
		if f.BusinessID, rest, err = splitPair(seg, afterIDUnrated, "id"); err != nil {
			return f, err
		}
		block, _, err := splitPair(rest, afterCatUnrated, "category")
		if err != nil {
			return f, err
		}
		f.Category, err = firstQuoted(block)
		return f, err
	}

	if _, seg, err = splitPair(rest, beforeCategory, "category"); err != nil {
		return f, err
	}
	block, rest, err := splitPair(seg, afterCategory, "category")
	if err != nil {
		return f, err
	}
	if f.Category, err = firstQuoted(block); err != nil {
		return f, err
	}
	if _, seg, err = splitPair(rest, beforeID, "id"); err != nil {
		return f, err
	}
	if f.BusinessID, rest, err = splitPair(seg, afterIDRated, "id"); err != nil {
		return f, err
	}
	_, err = extractCoordinates(&f, rest)
	return f, err
}

// extractCoordinates reads latitude and longitude from s and returns the
// text following the coordinate block.
func extractCoordinates(f *models.ExtractedFields, s string) (string, error) {
	_, seg, err := splitPair(s, beforeLatitude, "latitude")
	if err != nil {
		return "", err
	}
	lat, seg, err := splitPair(seg, beforeLongitude, "latitude")
	if err != nil {
		return "", err
	}
	lon, rest, err := splitPair(seg, afterLongitude, "longitude")
	if err != nil {
		return "", err
	}
	f.Latitude, f.Longitude = lat, lon
	return rest, nil
}

// firstQuoted returns the first single-quoted run in a categories block,
// which is the display label of the first category.
func firstQuoted(block string) (string, error) {
	parts := strings.Split(block, "'")
	if len(parts) < 2 {
		return "", &models.MalformedEntryError{Field: "category", Delimiter: "'", Err: models.ErrDelimiterNotFound}
	}
	return parts[1], nil
}

// StructuredExtractor parses the line as a Python or JSON literal and reads
// fields by key. Every business dict on the line is returned, in order,
// each with its own error.
type StructuredExtractor struct{}

func (StructuredExtractor) Extract(line string) ([]Entry, error) {
	tree, err := utils.ParseLiteral(strings.TrimSpace(line))
	if err != nil {
		return nil, &models.MalformedEntryError{Field: "entry", Err: err}
	}

	var businesses []map[string]any
	collectBusinesses(tree, &businesses)
	if len(businesses) == 0 {
		return nil, &models.MalformedEntryError{Field: "rating", Err: models.ErrFieldMissing}
	}

	out := make([]Entry, 0, len(businesses))
	for _, b := range businesses {
		f, err := fieldsFromBusiness(b)
		out = append(out, Entry{Fields: f, Err: err})
	}
	return out, nil
}

// collectBusinesses walks the tree depth first. A dict with both "rating"
// and "name" is a business and is not descended into.
func collectBusinesses(v any, out *[]map[string]any) {
	switch node := v.(type) {
	case map[string]any:
		_, hasRating := node["rating"]
		_, hasName := node["name"]
		if hasRating && hasName {
			*out = append(*out, node)
			return
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectBusinesses(node[k], out)
		}
	case []any:
		for _, item := range node {
			collectBusinesses(item, out)
		}
	}
}

func fieldsFromBusiness(b map[string]any) (models.ExtractedFields, error) {
	var f models.ExtractedFields
	var ok bool

	if f.Rating, ok = scalarText(b["rating"]); !ok {
		return f, missing("rating")
	}
	if f.Name, ok = b["name"].(string); !ok {
		return f, missing("name")
	}
	f.BusinessID, _ = b["id"].(string)
	f.Category = firstCategory(b["categories"])

	loc, _ := b["location"].(map[string]any)
	coord, _ := loc["coordinate"].(map[string]any)
	if f.Latitude, ok = scalarText(coord["latitude"]); !ok {
		return f, missing("latitude")
	}
	if f.Longitude, ok = scalarText(coord["longitude"]); !ok {
		return f, missing("longitude")
	}
	return f, nil
}

func missing(field string) error {
	return &models.MalformedEntryError{Field: field, Err: models.ErrFieldMissing}
}

func scalarText(v any) (string, bool) {
	switch val := v.(type) {
	case utils.Number:
		return string(val), true
	case string:
		return val, true
	}
	return "", false
}

// firstCategory returns the label of the first [label, alias] pair, or ""
// when the business has no categories.
func firstCategory(v any) string {
	cats, _ := v.([]any)
	if len(cats) == 0 {
		return ""
	}
	switch first := cats[0].(type) {
	case []any:
		if len(first) > 0 {
			label, _ := first[0].(string)
			return label
		}
	case string:
		return first
	}
	return ""
}

// ScanStats counts what a scan saw.
type ScanStats struct {
	Lines      int
	Candidates int
	Extracted  int
	Malformed  int
}

// EntryScanner feeds every candidate line of a raw dump through an
// Extractor and hands the results to a callback.
type EntryScanner struct {
	extractor Extractor
	logger    *utils.Logger
	metrics   *metrics.Metrics
	skip      bool
}

// NewEntryScanner creates a scanner. With skip set, malformed entries are
// logged and counted instead of stopping the scan.
func NewEntryScanner(ex Extractor, logger *utils.Logger, m *metrics.Metrics, skip bool) *EntryScanner {
	return &EntryScanner{extractor: ex, logger: logger.With("extractor"), metrics: m, skip: skip}
}

// Scan reads r to the end. emit may itself return a
// *models.MalformedEntryError, which is subject to the same policy; any
// other emit error stops the scan.
func (s *EntryScanner) Scan(ctx context.Context, r io.Reader, emit func(models.ExtractedFields) error) (ScanStats, error) {
	var stats ScanStats
	br := bufio.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return stats, readErr
		}
		if line != "" {
			stats.Lines++
			if err := s.scanLine(stats.Lines, strings.TrimRight(line, "\r\n"), &stats, emit); err != nil {
				return stats, err
			}
		}
		if readErr == io.EOF {
			return stats, nil
		}
	}
}

func (s *EntryScanner) scanLine(n int, line string, stats *ScanStats, emit func(models.ExtractedFields) error) error {
	if !strings.Contains(line, candidateMarker) {
		return nil
	}
	stats.Candidates++

	entries, err := s.extractor.Extract(line)
	if err != nil {
		return s.malformed(n, err, stats)
	}
	for _, e := range entries {
		err := e.Err
		if err == nil {
			err = emit(e.Fields)
		}
		if err != nil {
			if perr := s.malformed(n, err, stats); perr != nil {
				return perr
			}
			continue
		}
		stats.Extracted++
		if s.metrics != nil {
			s.metrics.EntriesExtracted.Inc()
		}
	}
	return nil
}

// malformed applies the error policy to err. Errors other than
// *models.MalformedEntryError are always returned.
func (s *EntryScanner) malformed(n int, err error, stats *ScanStats) error {
	var me *models.MalformedEntryError
	if !errors.As(err, &me) {
		return err
	}
	me.Line = n
	stats.Malformed++
	if s.metrics != nil {
		s.metrics.MalformedEntries.Inc()
	}
	if !s.skip {
		return me
	}
	s.logger.Warn("Skipping malformed entry: %v", me)
	return nil
}
