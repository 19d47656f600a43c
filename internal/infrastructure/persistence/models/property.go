package models

import (
	"time"

	"github.com/realty/backend/internal/domain/listing"
	"github.com/shopspring/decimal"
)

// PropertyModel is the persistence model for listing.Property
type PropertyModel struct {
	BaseModel
	// NaturalKey is mlsId, or listingKey when mlsId is empty
	NaturalKey string `gorm:"column:natural_key;type:varchar(100);not null;uniqueIndex:ux_properties_natural_key"`
	MLSID      string `gorm:"column:mls_id;type:varchar(100);not null"`
	ListingKey string `gorm:"type:varchar(100);not null"`

	Title              string           `gorm:"type:varchar(500);not null"`
	Description        string           `gorm:"type:text;not null"`
	Address            string           `gorm:"type:varchar(500);not null"`
	City               string           `gorm:"type:varchar(100);not null;index"`
	State              string           `gorm:"type:varchar(2);not null"`
	ZipCode            string           `gorm:"type:varchar(10);not null"`
	Neighborhood       *string          `gorm:"type:varchar(200)"`
	SchoolDistrict     *string          `gorm:"type:varchar(200)"`
	PropertyType       string           `gorm:"type:varchar(100);not null"`
	ArchitecturalStyle string           `gorm:"type:varchar(100);not null"`
	SecondaryStyle     *string          `gorm:"type:varchar(100)"`
	StyleConfidence    *decimal.Decimal `gorm:"type:numeric(5,4)"`
	StyleFeatures      []string         `gorm:"serializer:json"`

	Price             decimal.Decimal  `gorm:"type:numeric(14,2);not null;index"`
	OriginalListPrice *decimal.Decimal `gorm:"type:numeric(14,2)"`
	Status            string           `gorm:"type:varchar(50);not null"`
	MLSStatus         string           `gorm:"column:mls_status;type:varchar(100);not null"`

	Beds      int             `gorm:"not null"`
	Baths     decimal.Decimal `gorm:"type:numeric(4,1);not null"`
	Sqft      int             `gorm:"not null"`
	YearBuilt *int

	Images         []string `gorm:"serializer:json"`
	PhotoCount     int      `gorm:"not null"`
	VirtualTourURL *string  `gorm:"column:virtual_tour_url;type:varchar(1000)"`

	Latitude  *decimal.Decimal `gorm:"type:numeric(10,7)"`
	Longitude *decimal.Decimal `gorm:"type:numeric(10,7)"`

	Featured bool `gorm:"not null"`
	Luxury   bool `gorm:"not null"`

	IsIDXListing          bool      `gorm:"column:is_idx_listing;not null"`
	IDXSyncedAt           time.Time `gorm:"column:idx_synced_at;not null;index"`
	ListingAgentKey       *string   `gorm:"type:varchar(100)"`
	ListingOfficeName     *string   `gorm:"type:varchar(200)"`
	DaysOnMarket          *int
	ModificationTimestamp *time.Time
	ContentHash           string `gorm:"type:char(64);not null"`
}

// TableName returns the table name for GORM
func (PropertyModel) TableName() string {
	return "properties"
}

// ToDomain converts the persistence model to a domain Property
func (m *PropertyModel) ToDomain() *listing.Property {
	p := &listing.Property{
		BaseEntity:         m.BaseModel.ToDomain(),
		MLSID:              m.MLSID,
		ListingKey:         m.ListingKey,
		Title:              m.Title,
		Description:        m.Description,
		Address:            m.Address,
		City:               m.City,
		State:              m.State,
		ZipCode:            m.ZipCode,
		Neighborhood:       m.Neighborhood,
		SchoolDistrict:     m.SchoolDistrict,
		PropertyType:       m.PropertyType,
		ArchitecturalStyle: m.ArchitecturalStyle,
		SecondaryStyle:     m.SecondaryStyle,
		StyleConfidence:    m.StyleConfidence,
		StyleFeatures:      nonNil(m.StyleFeatures),
		Price:              m.Price,
		OriginalListPrice:  m.OriginalListPrice,
		Status:             m.Status,
		MLSStatus:          m.MLSStatus,
		Beds:               m.Beds,
		Baths:              m.Baths,
		Sqft:               m.Sqft,
		YearBuilt:          m.YearBuilt,
		Images:             nonNil(m.Images),
		PhotoCount:         m.PhotoCount,
		VirtualTourURL:     m.VirtualTourURL,
		Featured:           m.Featured,
		Luxury:             m.Luxury,
		IsIDXListing:       m.IsIDXListing,
		IDXSyncedAt:        m.IDXSyncedAt.UTC(),
		ListingAgentKey:    m.ListingAgentKey,
		ListingOfficeName:  m.ListingOfficeName,
		DaysOnMarket:       m.DaysOnMarket,
		ContentHash:        m.ContentHash,
	}
	if m.Latitude != nil && m.Longitude != nil {
		p.Coordinates = &listing.Coordinates{Latitude: *m.Latitude, Longitude: *m.Longitude}
	}
	if m.ModificationTimestamp != nil {
		ts := m.ModificationTimestamp.UTC()
		p.ModificationTimestamp = &ts
	}
	return p
}

// FromDomain populates the persistence model from a domain Property
func (m *PropertyModel) FromDomain(p *listing.Property) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.NaturalKey = p.NaturalKey()
	m.MLSID = p.MLSID
	m.ListingKey = p.ListingKey
	m.Title = p.Title
	m.Description = p.Description
	m.Address = p.Address
	m.City = p.City
	m.State = p.State
	m.ZipCode = p.ZipCode
	m.Neighborhood = p.Neighborhood
	m.SchoolDistrict = p.SchoolDistrict
	m.PropertyType = p.PropertyType
	m.ArchitecturalStyle = p.ArchitecturalStyle
	m.SecondaryStyle = p.SecondaryStyle
	m.StyleConfidence = p.StyleConfidence
	m.StyleFeatures = nonNil(p.StyleFeatures)
	m.Price = p.Price
	m.OriginalListPrice = p.OriginalListPrice
	m.Status = p.Status
	m.MLSStatus = p.MLSStatus
	m.Beds = p.Beds
	m.Baths = p.Baths
	m.Sqft = p.Sqft
	m.YearBuilt = p.YearBuilt
	m.Images = nonNil(p.Images)
	m.PhotoCount = p.PhotoCount
	m.VirtualTourURL = p.VirtualTourURL
	m.Latitude, m.Longitude = nil, nil
	if p.Coordinates != nil {
		lat, lng := p.Coordinates.Latitude, p.Coordinates.Longitude
		m.Latitude, m.Longitude = &lat, &lng
	}
	m.Featured = p.Featured
	m.Luxury = p.Luxury
	m.IsIDXListing = p.IsIDXListing
	m.IDXSyncedAt = p.IDXSyncedAt.UTC()
	m.ListingAgentKey = p.ListingAgentKey
	m.ListingOfficeName = p.ListingOfficeName
	m.DaysOnMarket = p.DaysOnMarket
	m.ModificationTimestamp = nil
	if p.ModificationTimestamp != nil {
		ts := p.ModificationTimestamp.UTC()
		m.ModificationTimestamp = &ts
	}
	m.ContentHash = p.ContentHash
}

// ContentColumns is the column set rewritten when a newer record arrives.
// Identity and creation time are left alone.
func (m *PropertyModel) ContentColumns() map[string]any {
	return map[string]any{
		"mls_id":                 m.MLSID,
		"listing_key":            m.ListingKey,
		"title":                  m.Title,
		"description":            m.Description,
		"address":                m.Address,
		"city":                   m.City,
		"state":                  m.State,
		"zip_code":               m.ZipCode,
		"neighborhood":           m.Neighborhood,
		"school_district":        m.SchoolDistrict,
		"property_type":          m.PropertyType,
		"architectural_style":    m.ArchitecturalStyle,
		"secondary_style":        m.SecondaryStyle,
		"style_confidence":       m.StyleConfidence,
		"style_features":         jsonText(m.StyleFeatures),
		"price":                  m.Price,
		"original_list_price":    m.OriginalListPrice,
		"status":                 m.Status,
		"mls_status":             m.MLSStatus,
		"beds":                   m.Beds,
		"baths":                  m.Baths,
		"sqft":                   m.Sqft,
		"year_built":             m.YearBuilt,
		"images":                 jsonText(m.Images),
		"photo_count":            m.PhotoCount,
		"virtual_tour_url":       m.VirtualTourURL,
		"latitude":               m.Latitude,
		"longitude":              m.Longitude,
		"featured":               m.Featured,
		"luxury":                 m.Luxury,
		"is_idx_listing":         m.IsIDXListing,
		"idx_synced_at":          m.IDXSyncedAt,
		"listing_agent_key":      m.ListingAgentKey,
		"listing_office_name":    m.ListingOfficeName,
		"days_on_market":         m.DaysOnMarket,
		"modification_timestamp": m.ModificationTimestamp,
		"content_hash":           m.ContentHash,
		"updated_at":             m.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
