package models

// SearchResponse is the body returned by the Yelp v2 search endpoint.
type SearchResponse struct {
	Total      int        `json:"total"`
	Businesses []Business `json:"businesses"`
	Error      *APIError  `json:"error,omitempty"`
}

// APIError is the error envelope Yelp returns on non-2xx responses.
type APIError struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Business struct {
	ID                string     `json:"id"`
	IsClaimed         bool       `json:"is_claimed"`
	IsClosed          bool       `json:"is_closed"`
	Name              string     `json:"name"`
	Rating            float64    `json:"rating"`
	ReviewCount       int        `json:"review_count"`
	URL               string     `json:"url"`
	MobileURL         string     `json:"mobile_url"`
	RatingImgURL      string     `json:"rating_img_url"`
	RatingImgURLSmall string     `json:"rating_img_url_small"`
	ImageURL          string     `json:"image_url"`
	SnippetText       string     `json:"snippet_text"`
	SnippetImageURL   string     `json:"snippet_image_url"`
	Phone             string     `json:"phone"`
	DisplayPhone      string     `json:"display_phone"`
	Distance          float64    `json:"distance"`
	Categories        [][]string `json:"categories"`
	Location          Location   `json:"location"`
}

// Location is the nested address block of a business.
type Location struct {
	Address        []string `json:"address"`
	DisplayAddress []string `json:"display_address"`
	City           string   `json:"city"`
	StateCode      string   `json:"state_code"`
	PostalCode     string   `json:"postal_code"`
	CountryCode    string   `json:"country_code"`
	CrossStreets   string   `json:"cross_streets"`
	Neighborhoods  []string `json:"neighborhoods"`
	GeoAccuracy    float64  `json:"geo_accuracy"`
	Coordinate     GeoPoint `json:"coordinate"`
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchLocation is one (latitude, longitude) pair a search is centred on.
type SearchLocation struct {
	Latitude  float64
	Longitude float64
}
