package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	listingapp "github.com/realty/backend/internal/application/listing"
	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/domain/shared"
	"github.com/realty/backend/internal/interfaces/http/dto"
	"github.com/realty/backend/internal/interfaces/http/middleware"
)

// PropertySearcher is the read side the property endpoints need
type PropertySearcher interface {
	Search(ctx context.Context, filter listing.SearchFilter, page shared.Pagination) (*listingapp.SearchResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*listingapp.PropertyResponse, error)
}

// PropertyHandler serves property search and lookup
type PropertyHandler struct {
	BaseHandler
	searcher PropertySearcher
}

// NewPropertyHandler creates a new PropertyHandler
func NewPropertyHandler(searcher PropertySearcher) *PropertyHandler {
	return &PropertyHandler{searcher: searcher}
}

// PropertySearchQuery holds the query parameters of a property search.
// Prices and baths stay strings until toFilter so a bad value reports the
// parameter name.
type PropertySearchQuery struct {
	Query              string `form:"query" binding:"max=200"`
	MinPrice           string `form:"minPrice"`
	MaxPrice           string `form:"maxPrice"`
	Beds               *int   `form:"beds" binding:"omitempty,gte=0"`
	Baths              string `form:"baths"`
	PropertyType       string `form:"propertyType" binding:"max=100"`
	City               string `form:"city" binding:"max=100"`
	Neighborhood       string `form:"neighborhood" binding:"max=100"`
	SchoolDistrict     string `form:"schoolDistrict" binding:"max=100"`
	ArchitecturalStyle string `form:"architecturalStyle" binding:"max=100"`
	Luxury             *bool  `form:"luxury"`
	Featured           *bool  `form:"featured"`
	Page               int    `form:"page"`
	Limit              int    `form:"limit"`
	Sort               string `form:"sort" binding:"omitempty,oneof=recent price_asc price_desc newest beds_desc"`
}

func (q PropertySearchQuery) toFilter() (listing.SearchFilter, []dto.ValidationDetail) {
	var details []dto.ValidationDetail
	parse := func(field, raw string) *decimal.Decimal {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			details = append(details, dto.ValidationDetail{Field: field, Message: "Must be a number"})
			return nil
		}
		return &d
	}

	filter := listing.SearchFilter{
		Query:              optional(q.Query),
		MinPrice:           parse("minPrice", q.MinPrice),
		MaxPrice:           parse("maxPrice", q.MaxPrice),
		Beds:               q.Beds,
		Baths:              parse("baths", q.Baths),
		PropertyType:       optional(q.PropertyType),
		City:               optional(q.City),
		Neighborhood:       optional(q.Neighborhood),
		SchoolDistrict:     optional(q.SchoolDistrict),
		ArchitecturalStyle: optional(q.ArchitecturalStyle),
		Luxury:             q.Luxury,
		Featured:           q.Featured,
		Sort:               listing.SortOrder(q.Sort),
	}
	return filter, details
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Search godoc
// @Summary      Search properties
// @Description  Filters combine with AND; luxury and featured only restrict when true
// @Tags         properties
// @Produce      json
// @Param        query query string false "Substring over title, description, address, city and neighborhood"
// @Param        minPrice query number false "Minimum price, inclusive"
// @Param        maxPrice query number false "Maximum price, inclusive"
// @Param        beds query int false "Minimum bedrooms"
// @Param        baths query number false "Minimum bathrooms"
// @Param        page query int false "Page number" default(1)
// @Param        limit query int false "Page size" default(20) maximum(100)
// @Param        sort query string false "Ordering" Enums(recent, price_asc, price_desc, newest, beds_desc)
// @Success      200 {object} dto.Response{data=[]listingapp.PropertyResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /properties [get]
func (h *PropertyHandler) Search(c *gin.Context) {
	var q PropertySearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter, details := q.toFilter()
	if len(details) > 0 {
		h.ValidationError(c, "Invalid search parameters", details)
		return
	}

	result, err := h.searcher.Search(c.Request.Context(), filter, shared.NewPagination(q.Page, q.Limit))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get godoc
// @Summary      Get a property
// @Tags         properties
// @Produce      json
// @Param        id path string true "Property ID" format(uuid)
// @Success      200 {object} dto.Response{data=listingapp.PropertyResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /properties/{id} [get]
func (h *PropertyHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.ValidationError(c, "Invalid property ID", []dto.ValidationDetail{
			{Field: "id", Message: "Invalid UUID format"},
		})
		return
	}

	property, err := h.searcher.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, property)
}
