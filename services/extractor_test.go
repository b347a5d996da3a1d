package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"yelp-pins/metrics"
	"yelp-pins/models"
	"yelp-pins/scraper/yelp"
	"yelp-pins/utils"
)

const ratedLine = `{u'is_claimed': True, u'rating': 4.5, u'mobile_url': u'http://m.yelp.ca/biz/cafe-x', ` +
	`u'name': u'Cafe X', u'rating_img_url_small': u'http://s.yelp.com/small.png', ` +
	`u'categories': [[u'Coffee', u'coffee']], u'display_phone': u'+1-250-555-0100', ` +
	`u'id': u'cafe-x-victoria', u'snippet_image_url': u'http://s.yelp.com/snip.jpg', ` +
	`u'location': {u'city': u'Victoria', u'coordinate': {u'latitude': 48.42, u'longitude': -123.31}, u'state_code': u'BC'}}`

const unratedLine = `{u'is_claimed': False, u'rating': 0.0, u'mobile_url': u'http://m.yelp.ca/biz/new-spot', ` +
	`u'name': u'New Spot', u'rating_img_url_small': u'http://s.yelp.com/small.png', ` +
	`u'location': {u'coordinate': {u'latitude': 48.4, u'longitude': -123.3}, u'state_code': u'BC'}, ` +
	`u'phone': u'2505550101', u'id': u'new-spot', u'categories': [[u'Sushi Bars', u'sushi']], u'distance': 12.5}`

func quietLogger() *utils.Logger { return utils.NewLoggerTo(io.Discard, utils.LevelError) }

func TestDelimiterExtractor(t *testing.T) {
	tests := []struct {
		name string
		line string
		want models.ExtractedFields
	}{
		{
			name: "claimed rated",
			line: ratedLine,
			want: models.ExtractedFields{
				Rating: "4.5", Name: "Cafe X", Category: "Coffee",
				Latitude: "48.42", Longitude: "-123.31", BusinessID: "cafe-x-victoria",
			},
		},
		{
			name: "unclaimed unrated",
			line: unratedLine,
			want: models.ExtractedFields{
				Rating: "0.0", Name: "New Spot", Category: "Sushi Bars",
				Latitude: "48.4", Longitude: "-123.3", BusinessID: "new-spot",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DelimiterExtractor{}.Extract(tt.line)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if len(got) != 1 || got[0] != (Entry{Fields: tt.want}) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDelimiterExtractorMissingDelimiter(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{"no prefix", `{'rating': 4.5, 'name': 'Nowhere'}`, "rating"},
		{"no name", strings.Replace(ratedLine, "u'name': u'Cafe X'", "u'title': u'Cafe X'", 1), "name"},
		{"no longitude", strings.Replace(ratedLine, "u'longitude'", "u'lng'", 1), "latitude"},
		{"no state code", strings.Replace(ratedLine, ", u'state_code': u'BC'", "", 1), "longitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DelimiterExtractor{}.Extract(tt.line)
			var me *models.MalformedEntryError
			if !errors.As(err, &me) {
				t.Fatalf("expected MalformedEntryError, got %v", err)
			}
			if me.Field != tt.field || !errors.Is(err, models.ErrDelimiterNotFound) {
				t.Errorf("got field %q (%v), want %q", me.Field, err, tt.field)
			}
		})
	}
}

func TestStructuredExtractor(t *testing.T) {
	got, err := StructuredExtractor{}.Extract(ratedLine)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := models.ExtractedFields{
		Rating: "4.5", Name: "Cafe X", Category: "Coffee",
		Latitude: "48.42", Longitude: "-123.31", BusinessID: "cafe-x-victoria",
	}
	if len(got) != 1 || got[0] != (Entry{Fields: want}) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStructuredExtractorWholeResponse(t *testing.T) {
	line := `{"total": 2, "businesses": [` +
		`{"id": "a", "name": "A", "rating": 4, "categories": [], "location": {"coordinate": {"latitude": 1.5, "longitude": 2.5}}},` +
		`{"id": "b", "name": "B", "rating": 3.5, "categories": [["Pubs", "pubs"]], "location": {"coordinate": {"latitude": 3, "longitude": 4}}}]}`

	got, err := StructuredExtractor{}.Extract(line)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries: got %d, want 2", len(got))
	}
	if a := got[0].Fields; got[0].Err != nil || a.Name != "A" || a.Category != "" || a.Rating != "4" {
		t.Errorf("first: got %+v", got[0])
	}
	if b := got[1].Fields; got[1].Err != nil || b.Name != "B" || b.Category != "Pubs" || b.Latitude != "3" {
		t.Errorf("second: got %+v", got[1])
	}
}

func TestStructuredExtractorMissingCoordinate(t *testing.T) {
	got, err := StructuredExtractor{}.Extract(`{'rating': 4.0, 'name': 'Nowhere', 'location': {}}`)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entries: got %d, want 1", len(got))
	}
	var me *models.MalformedEntryError
	if !errors.As(got[0].Err, &me) || me.Field != "latitude" || !errors.Is(got[0].Err, models.ErrFieldMissing) {
		t.Errorf("expected missing latitude, got %v", got[0].Err)
	}
}

func TestStructuredExtractorKeepsGoodBusinessesBesideBadOne(t *testing.T) {
	noCoordinate := `{u'rating': 3.0, u'name': u'Lost', u'id': u'lost', u'location': {u'city': u'Victoria'}}`
	line := `[{u'businesses': [` + ratedLine + `, ` + noCoordinate + `, ` + unratedLine + `]}]`

	got, err := StructuredExtractor{}.Extract(line)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries: got %d, want 3", len(got))
	}
	if got[0].Err != nil || got[0].Fields.Name != "Cafe X" {
		t.Errorf("first: got %+v", got[0])
	}
	var me *models.MalformedEntryError
	if !errors.As(got[1].Err, &me) || me.Field != "latitude" {
		t.Errorf("second: expected missing latitude, got %v", got[1].Err)
	}
	if got[2].Err != nil || got[2].Fields.Name != "New Spot" {
		t.Errorf("third: got %+v", got[2])
	}
}

func TestStructuredExtractorUnreadableLine(t *testing.T) {
	for _, line := range []string{`{u'rating': 4.5, u'name': `, `{u'rating': 4.5}`} {
		_, err := StructuredExtractor{}.Extract(line)
		var me *models.MalformedEntryError
		if !errors.As(err, &me) {
			t.Errorf("%q: expected MalformedEntryError, got %v", line, err)
		}
	}
}

func TestApostropheNameNeedsStructuredExtractor(t *testing.T) {
	b := models.Business{
		ID: "joes-diner", IsClaimed: true, Name: "Joe's Diner", Rating: 4,
		Categories: [][]string{{"Diners", "diners"}},
		Location:   models.Location{Coordinate: models.GeoPoint{Latitude: 48.43, Longitude: -123.36}},
	}
	line := yelp.EncodeRepr(b)

	_, err := DelimiterExtractor{}.Extract(line)
	var me *models.MalformedEntryError
	if !errors.As(err, &me) || me.Field != "name" {
		t.Errorf("delimiter extractor: expected malformed name, got %v", err)
	}

	got, err := StructuredExtractor{}.Extract(line)
	if err != nil {
		t.Fatalf("structured extractor: %v", err)
	}
	if len(got) != 1 || got[0].Err != nil || got[0].Fields.Name != "Joe's Diner" || got[0].Fields.Category != "Diners" {
		t.Errorf("structured extractor: got %+v", got)
	}
}

func TestEncodedDumpExtractsWithBothExtractors(t *testing.T) {
	businesses := []models.Business{
		{
			ID: "cafe-x-victoria", IsClaimed: true, Name: "Cafe X", Rating: 4.5, ReviewCount: 12,
			Categories: [][]string{{"Coffee & Tea", "coffee"}},
			Location:   models.Location{City: "Victoria", Coordinate: models.GeoPoint{Latitude: 48.42, Longitude: -123.31}},
		},
		{
			ID: "new-spot", Name: "New Spot", Rating: 0,
			Categories: [][]string{{"Sushi Bars", "sushi"}},
			Location:   models.Location{Coordinate: models.GeoPoint{Latitude: 48.4, Longitude: -123.3}},
		},
	}
	want := []models.ExtractedFields{
		{Rating: "4.5", Name: "Cafe X", Category: "Coffee & Tea", Latitude: "48.42", Longitude: "-123.31", BusinessID: "cafe-x-victoria"},
		{Rating: "0.0", Name: "New Spot", Category: "Sushi Bars", Latitude: "48.4", Longitude: "-123.3", BusinessID: "new-spot"},
	}

	for _, ex := range []Extractor{DelimiterExtractor{}, StructuredExtractor{}} {
		for i, b := range businesses {
			got, err := ex.Extract(yelp.EncodeRepr(b))
			if err != nil {
				t.Fatalf("%T: %s: %v", ex, b.ID, err)
			}
			if len(got) != 1 || got[0] != (Entry{Fields: want[i]}) {
				t.Errorf("%T: got %+v, want %+v", ex, got, want[i])
			}
		}
	}
}

func TestEntryScannerOnlyReadsCandidateLines(t *testing.T) {
	dump := "header line\n" + ratedLine + "\n\n" + unratedLine
	s := NewEntryScanner(DelimiterExtractor{}, quietLogger(), nil, false)

	var names []string
	stats, err := s.Scan(context.Background(), strings.NewReader(dump), func(f models.ExtractedFields) error {
		names = append(names, f.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.Lines != 4 || stats.Candidates != 2 || stats.Extracted != 2 {
		t.Errorf("stats: got %+v", stats)
	}
	if strings.Join(names, ",") != "Cafe X,New Spot" {
		t.Errorf("order: got %v", names)
	}
}

func TestEntryScannerErrorPolicy(t *testing.T) {
	bad := `{u'rating': 4.5, u'name': u'Broken'}`
	dump := ratedLine + "\n" + bad + "\n" + unratedLine + "\n"

	t.Run("abort", func(t *testing.T) {
		s := NewEntryScanner(DelimiterExtractor{}, quietLogger(), nil, false)
		emitted := 0
		_, err := s.Scan(context.Background(), strings.NewReader(dump), func(models.ExtractedFields) error {
			emitted++
			return nil
		})
		var me *models.MalformedEntryError
		if !errors.As(err, &me) || me.Line != 2 {
			t.Fatalf("expected malformed entry on line 2, got %v", err)
		}
		if emitted != 1 {
			t.Errorf("emitted before abort: got %d, want 1", emitted)
		}
	})

	t.Run("skip", func(t *testing.T) {
		m := metrics.New()
		s := NewEntryScanner(DelimiterExtractor{}, quietLogger(), m, true)
		stats, err := s.Scan(context.Background(), strings.NewReader(dump), func(models.ExtractedFields) error { return nil })
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if stats.Extracted != 2 || stats.Malformed != 1 {
			t.Errorf("stats: got %+v", stats)
		}
		if got := testutil.ToFloat64(m.MalformedEntries); got != 1 {
			t.Errorf("malformed metric: got %v", got)
		}
		if got := testutil.ToFloat64(m.EntriesExtracted); got != 2 {
			t.Errorf("extracted metric: got %v", got)
		}
	})
}

func TestEntryScannerStopsOnSinkError(t *testing.T) {
	s := NewEntryScanner(DelimiterExtractor{}, quietLogger(), nil, true)
	sinkErr := &models.SinkWriteError{Sink: "file", Err: errors.New("disk full")}
	_, err := s.Scan(context.Background(), strings.NewReader(ratedLine), func(models.ExtractedFields) error {
		return sinkErr
	})
	if !errors.Is(err, sinkErr) {
		t.Errorf("expected sink error even under skip, got %v", err)
	}
}

func TestEntryScannerSkipsBadBusinessWithinLine(t *testing.T) {
	noCoordinate := `{u'rating': 3.0, u'name': u'Lost', u'location': {}}`
	line := `[{u'businesses': [` + ratedLine + `, ` + noCoordinate + `, ` + unratedLine + `]}]`

	t.Run("skip", func(t *testing.T) {
		s := NewEntryScanner(StructuredExtractor{}, quietLogger(), nil, true)
		var names []string
		stats, err := s.Scan(context.Background(), strings.NewReader(line), func(f models.ExtractedFields) error {
			names = append(names, f.Name)
			return nil
		})
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		if stats.Candidates != 1 || stats.Extracted != 2 || stats.Malformed != 1 {
			t.Errorf("stats: got %+v", stats)
		}
		if strings.Join(names, ",") != "Cafe X,New Spot" {
			t.Errorf("emitted: got %v", names)
		}
	})

	t.Run("abort", func(t *testing.T) {
		s := NewEntryScanner(StructuredExtractor{}, quietLogger(), nil, false)
		emitted := 0
		_, err := s.Scan(context.Background(), strings.NewReader(line), func(models.ExtractedFields) error {
			emitted++
			return nil
		})
		var me *models.MalformedEntryError
		if !errors.As(err, &me) || me.Line != 1 || me.Field != "latitude" {
			t.Fatalf("expected malformed latitude on line 1, got %v", err)
		}
		if emitted != 1 {
			t.Errorf("emitted before abort: got %d, want 1", emitted)
		}
	})
}

func TestEntryScannerSkipsRejectedEmitWithinLine(t *testing.T) {
	line := `[` + ratedLine + `, ` + unratedLine + `]`
	s := NewEntryScanner(StructuredExtractor{}, quietLogger(), nil, true)

	var names []string
	stats, err := s.Scan(context.Background(), strings.NewReader(line), func(f models.ExtractedFields) error {
		if f.Name == "Cafe X" {
			return &models.MalformedEntryError{Field: "latitude", Err: models.ErrInvalidCoordinate}
		}
		names = append(names, f.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.Extracted != 1 || stats.Malformed != 1 || len(names) != 1 || names[0] != "New Spot" {
		t.Errorf("stats %+v, emitted %v", stats, names)
	}
}
