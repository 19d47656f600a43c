package listing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/realty/backend/internal/domain/listing"
)

// CoordinatesResponse is a lat/lng pair
type CoordinatesResponse struct {
	Latitude  decimal.Decimal `json:"lat"`
	Longitude decimal.Decimal `json:"lng"`
}

// PropertyResponse is a property as the public site renders it. Money and
// bathroom counts are decimal strings.
type PropertyResponse struct {
	ID                 uuid.UUID            `json:"id"`
	MLSID              string               `json:"mlsId,omitempty"`
	ListingKey         string               `json:"listingKey,omitempty"`
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Address            string               `json:"address"`
	City               string               `json:"city"`
	State              string               `json:"state"`
	ZipCode            string               `json:"zipCode"`
	Neighborhood       *string              `json:"neighborhood"`
	SchoolDistrict     *string              `json:"schoolDistrict"`
	PropertyType       string               `json:"propertyType"`
	ArchitecturalStyle string               `json:"architecturalStyle"`
	SecondaryStyle     *string              `json:"secondaryStyle"`
	StyleConfidence    *decimal.Decimal     `json:"styleConfidence"`
	StyleFeatures      []string             `json:"styleFeatures"`
	Price              decimal.Decimal      `json:"price"`
	OriginalListPrice  *decimal.Decimal     `json:"originalListPrice"`
	Status             string               `json:"status"`
	MLSStatus          string               `json:"mlsStatus"`
	Beds               int                  `json:"beds"`
	Baths              decimal.Decimal      `json:"baths"`
	Sqft               int                  `json:"sqft"`
	YearBuilt          *int                 `json:"yearBuilt"`
	Image              string               `json:"image"`
	Images             []string             `json:"images"`
	PhotoCount         int                  `json:"photoCount"`
	VirtualTourURL     *string              `json:"virtualTourUrl"`
	Coordinates        *CoordinatesResponse `json:"coordinates"`
	Featured           bool                 `json:"featured"`
	Luxury             bool                 `json:"luxury"`
	IsIDXListing       bool                 `json:"isIdxListing"`
	IDXSyncedAt        time.Time            `json:"idxSyncedAt"`
	ListingAgentKey    *string              `json:"listingAgentKey"`
	ListingOfficeName  *string              `json:"listingOfficeName"`
	DaysOnMarket       *int                 `json:"daysOnMarket"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// SearchResult is one page of properties
type SearchResult struct {
	Items      []PropertyResponse
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
	HasMore    bool
}

// ToPropertyResponse converts a domain property
func ToPropertyResponse(p *listing.Property) PropertyResponse {
	r := PropertyResponse{
		ID:                 p.ID,
		MLSID:              p.MLSID,
		ListingKey:         p.ListingKey,
		Title:              p.Title,
		Description:        p.Description,
		Address:            p.Address,
		City:               p.City,
		State:              p.State,
		ZipCode:            p.ZipCode,
		Neighborhood:       p.Neighborhood,
		SchoolDistrict:     p.SchoolDistrict,
		PropertyType:       p.PropertyType,
		ArchitecturalStyle: p.ArchitecturalStyle,
		SecondaryStyle:     p.SecondaryStyle,
		StyleConfidence:    p.StyleConfidence,
		StyleFeatures:      nonNil(p.StyleFeatures),
		Price:              p.Price,
		OriginalListPrice:  p.OriginalListPrice,
		Status:             p.Status,
		MLSStatus:          p.MLSStatus,
		Beds:               p.Beds,
		Baths:              p.Baths,
		Sqft:               p.Sqft,
		YearBuilt:          p.YearBuilt,
		Image:              p.PrimaryImage(),
		Images:             nonNil(p.Images),
		PhotoCount:         p.PhotoCount,
		VirtualTourURL:     p.VirtualTourURL,
		Featured:           p.Featured,
		Luxury:             p.Luxury,
		IsIDXListing:       p.IsIDXListing,
		IDXSyncedAt:        p.IDXSyncedAt,
		ListingAgentKey:    p.ListingAgentKey,
		ListingOfficeName:  p.ListingOfficeName,
		DaysOnMarket:       p.DaysOnMarket,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.Coordinates != nil {
		r.Coordinates = &CoordinatesResponse{Latitude: p.Coordinates.Latitude, Longitude: p.Coordinates.Longitude}
	}
	return r
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
