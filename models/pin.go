package models

import (
	"encoding/json"
	"time"
)

// PinType tags the category group a pin belongs to.
type PinType int

const (
	PinTypeRestaurant PinType = 0
	PinTypeSight      PinType = 1
	PinTypeHiking     PinType = 2
)

func (t PinType) String() string {
	switch t {
	case PinTypeRestaurant:
		return "restaurant"
	case PinTypeSight:
		return "sight"
	case PinTypeHiking:
		return "hiking"
	}
	return "unknown"
}

// Valid reports whether t is one of the known pin types.
func (t PinType) Valid() bool {
	return t >= PinTypeRestaurant && t <= PinTypeHiking
}

// ExtractedFields holds the verbatim text pulled out of one raw result entry.
// No numeric parsing happens at this stage.
type ExtractedFields struct {
	Rating     string
	Name       string
	Latitude   string
	Longitude  string
	Category   string
	BusinessID string
}

// Coordinate keeps latitude/longitude as the source text so they serialize
// exactly as they appeared in the raw dump.
type Coordinate struct {
	Latitude  json.Number `json:"latitude"`
	Longitude json.Number `json:"longitude"`
}

// Review is the downstream review shape. Pins are created with a single
// all-null placeholder.
type Review struct {
	LinkedAccount *string    `json:"linkedAccount"`
	Text          *string    `json:"text"`
	CreateDate    *time.Time `json:"createDate"`
}

// Pin is the normalized record consumed by the pins store.
type Pin struct {
	Rating        string     `json:"rating"`
	PinType       PinType    `json:"pinType"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Likes         int        `json:"likes"`
	Coordinate    Coordinate `json:"coordinate"`
	LinkedAccount string     `json:"linkedAccount"`
	Reviews       []Review   `json:"reviews"`

	// SourceID is the upstream business id. It is used as a store key only.
	SourceID string `json:"-"`
}
