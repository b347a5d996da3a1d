package yelp

import (
	"encoding/json"
	"fmt"

	"yelp-pins/config"
	"yelp-pins/models"
	"yelp-pins/utils"
)

// DumpLines renders businesses one per line for the intermediate sink.
func DumpLines(businesses []models.Business, format string) ([]string, error) {
	lines := make([]string, 0, len(businesses))
	for _, b := range businesses {
		switch format {
		case config.RawFormatJSON:
			data, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("dump business %q: %w", b.ID, err)
			}
			lines = append(lines, string(data))
		case config.RawFormatRepr:
			lines = append(lines, EncodeRepr(b))
		default:
			return nil, fmt.Errorf("dump: unknown raw format %q", format)
		}
	}
	return lines, nil
}

var repr = utils.ReprEncoder{Unicode: true}

// EncodeRepr prints a business as a Python 2 dict literal in the key order
// the v2 API payloads were observed in. Rated businesses put categories and
// id before location; unrated ones (rating 0.0) carry location first and
// id/categories/distance after it.
func EncodeRepr(b models.Business) string {
	if b.Rating == 0 {
		return repr.Encode(unratedLayout(b))
	}
	return repr.Encode(ratedLayout(b))
}

func ratedLayout(b models.Business) utils.Dict {
	return utils.Dict{
		{Key: "is_claimed", Value: b.IsClaimed},
		{Key: "rating", Value: b.Rating},
		{Key: "mobile_url", Value: b.MobileURL},
		{Key: "rating_img_url", Value: b.RatingImgURL},
		{Key: "review_count", Value: b.ReviewCount},
		{Key: "name", Value: b.Name},
		{Key: "rating_img_url_small", Value: b.RatingImgURLSmall},
		{Key: "url", Value: b.URL},
		{Key: "categories", Value: categories(b)},
		{Key: "display_phone", Value: b.DisplayPhone},
		{Key: "snippet_text", Value: b.SnippetText},
		{Key: "image_url", Value: b.ImageURL},
		{Key: "id", Value: b.ID},
		{Key: "snippet_image_url", Value: b.SnippetImageURL},
		{Key: "location", Value: locationLayout(b.Location)},
		{Key: "phone", Value: b.Phone},
		{Key: "is_closed", Value: b.IsClosed},
		{Key: "distance", Value: b.Distance},
	}
}

func unratedLayout(b models.Business) utils.Dict {
	return utils.Dict{
		{Key: "is_claimed", Value: b.IsClaimed},
		{Key: "rating", Value: b.Rating},
		{Key: "mobile_url", Value: b.MobileURL},
		{Key: "rating_img_url", Value: b.RatingImgURL},
		{Key: "review_count", Value: b.ReviewCount},
		{Key: "name", Value: b.Name},
		{Key: "rating_img_url_small", Value: b.RatingImgURLSmall},
		{Key: "url", Value: b.URL},
		{Key: "snippet_text", Value: b.SnippetText},
		{Key: "image_url", Value: b.ImageURL},
		{Key: "snippet_image_url", Value: b.SnippetImageURL},
		{Key: "display_phone", Value: b.DisplayPhone},
		{Key: "location", Value: locationLayout(b.Location)},
		{Key: "phone", Value: b.Phone},
		{Key: "id", Value: b.ID},
		{Key: "categories", Value: categories(b)},
		{Key: "distance", Value: b.Distance},
		{Key: "is_closed", Value: b.IsClosed},
	}
}

func locationLayout(l models.Location) utils.Dict {
	return utils.Dict{
		{Key: "cross_streets", Value: l.CrossStreets},
		{Key: "city", Value: l.City},
		{Key: "display_address", Value: nonNil(l.DisplayAddress)},
		{Key: "geo_accuracy", Value: l.GeoAccuracy},
		{Key: "neighborhoods", Value: nonNil(l.Neighborhoods)},
		{Key: "postal_code", Value: l.PostalCode},
		{Key: "country_code", Value: l.CountryCode},
		{Key: "address", Value: nonNil(l.Address)},
		{Key: "coordinate", Value: utils.Dict{
			{Key: "latitude", Value: l.Coordinate.Latitude},
			{Key: "longitude", Value: l.Coordinate.Longitude},
		}},
		{Key: "state_code", Value: l.StateCode},
	}
}

func categories(b models.Business) [][]string {
	if b.Categories == nil {
		return [][]string{}
	}
	return b.Categories
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
