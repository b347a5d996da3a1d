package storage

import (
	"context"
	"fmt"

	"github.com/olivere/elastic/v7"

	"yelp-pins/models"
)

const pinIndexMapping = `{
	"mappings": {
		"properties": {
			"run_id":         {"type": "keyword"},
			"rating":         {"type": "keyword"},
			"pin_type":       {"type": "integer"},
			"name":           {"type": "text"},
			"description":    {"type": "keyword"},
			"likes":          {"type": "integer"},
			"location":       {"type": "geo_point"},
			"linked_account": {"type": "keyword"}
		}
	}
}`

// ElasticWriter bulk-indexes pins into Elasticsearch with a geo_point
// location so they can be searched by distance.
type ElasticWriter struct {
	client *elastic.Client
	index  string
}

// pinDocument is the indexed shape of a pin.
type pinDocument struct {
	RunID         string           `json:"run_id"`
	Rating        string           `json:"rating"`
	PinType       int              `json:"pin_type"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Likes         int              `json:"likes"`
	Location      elastic.GeoPoint `json:"location"`
	LinkedAccount string           `json:"linked_account"`
}

// NewElasticWriter connects to url and creates index with the pin mapping
// if it does not exist yet.
func NewElasticWriter(ctx context.Context, url, index string) (*ElasticWriter, error) {
	client, err := elastic.NewClient(elastic.SetURL(url), elastic.SetSniff(false))
	if err != nil {
		return nil, fmt.Errorf("elastic: connect: %w", err)
	}

	exists, err := client.IndexExists(index).Do(ctx)
	if err != nil {
		client.Stop()
		return nil, fmt.Errorf("elastic: check index %q: %w", index, err)
	}
	if !exists {
		created, err := client.CreateIndex(index).BodyString(pinIndexMapping).Do(ctx)
		if err != nil {
			client.Stop()
			return nil, fmt.Errorf("elastic: create index %q: %w", index, err)
		}
		if !created.Acknowledged {
			client.Stop()
			return nil, fmt.Errorf("elastic: create index %q not acknowledged", index)
		}
	}

	return &ElasticWriter{client: client, index: index}, nil
}

func newPinDocument(runID string, p *models.Pin) (pinDocument, error) {
	lat, err := p.Coordinate.Latitude.Float64()
	if err != nil {
		return pinDocument{}, fmt.Errorf("pin %q latitude: %w", p.Name, err)
	}
	lon, err := p.Coordinate.Longitude.Float64()
	if err != nil {
		return pinDocument{}, fmt.Errorf("pin %q longitude: %w", p.Name, err)
	}
	return pinDocument{
		RunID:         runID,
		Rating:        p.Rating,
		PinType:       int(p.PinType),
		Name:          p.Name,
		Description:   p.Description,
		Likes:         p.Likes,
		Location:      elastic.GeoPoint{Lat: lat, Lon: lon},
		LinkedAccount: p.LinkedAccount,
	}, nil
}

// Store indexes all pins in one bulk request. Pins with a source id are
// indexed under it, so re-running a crawl overwrites rather than duplicates.
func (w *ElasticWriter) Store(ctx context.Context, runID string, pins []*models.Pin) (int, error) {
	if len(pins) == 0 {
		return 0, nil
	}

	bulk := w.client.Bulk()
	for _, p := range pins {
		doc, err := newPinDocument(runID, p)
		if err != nil {
			return 0, &models.SinkWriteError{Sink: "elastic", Err: err}
		}
		req := elastic.NewBulkIndexRequest().Index(w.index).Doc(doc)
		if p.SourceID != "" {
			req = req.Id(p.SourceID)
		}
		bulk = bulk.Add(req)
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return 0, &models.SinkWriteError{Sink: "elastic", Err: err}
	}
	if failed := resp.Failed(); len(failed) > 0 {
		reason := "unknown"
		if failed[0].Error != nil {
			reason = failed[0].Error.Reason
		}
		return len(resp.Succeeded()), &models.SinkWriteError{
			Sink: "elastic",
			Err:  fmt.Errorf("%d of %d pins failed to index: %s", len(failed), len(pins), reason),
		}
	}
	return len(resp.Succeeded()), nil
}

func (w *ElasticWriter) Close() error {
	w.client.Stop()
	return nil
}
