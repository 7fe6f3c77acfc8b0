package marketplace

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/go-playground/validator/v10"
	estate "github.com/homequest/estate-go"
	"github.com/homequest/estate-go/api"
)

// Properties implements estate.PropertyService.
type Properties struct {
	backend  Backend
	uploader Uploader
	validate *validator.Validate
}

var _ estate.PropertyService = (*Properties)(nil)

// NewProperties creates a property service over the given channels.
func NewProperties(backend Backend, uploader Uploader) *Properties {
	return &Properties{
		backend:  backend,
		uploader: uploader,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type propertyInput struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description,omitempty"`
	Address     string  `json:"address" validate:"required"`
	City        string  `json:"city" validate:"required"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Bedrooms    int     `json:"bedrooms,omitempty" validate:"gte=0"`
	Bathrooms   int     `json:"bathrooms,omitempty" validate:"gte=0"`
	AreaSqm     float64 `json:"area_sqm,omitempty" validate:"gte=0"`
	ListingType string  `json:"listing_type,omitempty" validate:"omitempty,oneof=rent sale"`
}

type propertyResponse struct {
	api.Envelope
	Property *estate.Property `json:"property"`
}

type propertyListResponse struct {
	api.Envelope
	Properties []*estate.Property `json:"properties"`
}

// List returns properties matching the filter.
func (s *Properties) List(ctx context.Context, filter estate.PropertyFilter) ([]*estate.Property, error) {
	q := listQuery(filter.ListOptions)
	if filter.City != "" {
		q.Set("city", filter.City)
	}
	if filter.ListingType != "" {
		q.Set("listing_type", filter.ListingType)
	}
	if filter.MinPrice > 0 {
		q.Set("min_price", strconv.FormatFloat(filter.MinPrice, 'f', -1, 64))
	}
	if filter.MaxPrice > 0 {
		q.Set("max_price", strconv.FormatFloat(filter.MaxPrice, 'f', -1, 64))
	}
	if filter.MinBedrooms > 0 {
		q.Set("min_bedrooms", strconv.Itoa(filter.MinBedrooms))
	}

	var resp propertyListResponse
	if err := s.backend.Get(ctx, withQuery("/properties", q), &resp); err != nil {
		return nil, wrap("properties", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("properties", err)
	}
	return resp.Properties, nil
}

// Get returns one property by ID.
func (s *Properties) Get(ctx context.Context, id string) (*estate.Property, error) {
	if id == "" {
		return nil, fmt.Errorf("estate/properties: id cannot be empty")
	}
	var resp propertyResponse
	if err := s.backend.Get(ctx, "/properties/"+pathEscape(id), &resp); err != nil {
		return nil, wrap("properties", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("properties", err)
	}
	return resp.Property, nil
}

// Create adds a new listing.
func (s *Properties) Create(ctx context.Context, p *estate.Property) (*estate.Property, error) {
	in := propertyInput{
		Title: p.Title, Description: p.Description, Address: p.Address,
		City: p.City, Price: p.Price, Bedrooms: p.Bedrooms,
		Bathrooms: p.Bathrooms, AreaSqm: p.AreaSqm, ListingType: p.ListingType,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("estate/properties: invalid listing: %w", err)
	}
	var resp propertyResponse
	if err := s.backend.Post(ctx, "/properties", in, &resp); err != nil {
		return nil, wrap("properties", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("properties", err)
	}
	return resp.Property, nil
}

// Update replaces a listing.
func (s *Properties) Update(ctx context.Context, p *estate.Property) (*estate.Property, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("estate/properties: id cannot be empty")
	}
	in := propertyInput{
		Title: p.Title, Description: p.Description, Address: p.Address,
		City: p.City, Price: p.Price, Bedrooms: p.Bedrooms,
		Bathrooms: p.Bathrooms, AreaSqm: p.AreaSqm, ListingType: p.ListingType,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("estate/properties: invalid listing: %w", err)
	}
	var resp propertyResponse
	if err := s.backend.Put(ctx, "/properties/"+pathEscape(p.ID), in, &resp); err != nil {
		return nil, wrap("properties", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("properties", err)
	}
	return resp.Property, nil
}

// Delete removes a listing.
func (s *Properties) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("estate/properties: id cannot be empty")
	}
	var env api.Envelope
	if err := s.backend.Delete(ctx, "/properties/"+pathEscape(id), &env); err != nil {
		return wrap("properties", err)
	}
	if err := envelopeErr(env); err != nil {
		return wrap("properties", err)
	}
	return nil
}

type uploadResponse struct {
	api.Envelope
	URL string `json:"url"`
}

// UploadImage attaches an image to a property through the multipart channel
// and returns the stored image URL.
func (s *Properties) UploadImage(ctx context.Context, propertyID, filename string, data []byte) (string, error) {
	if propertyID == "" {
		return "", fmt.Errorf("estate/properties: property id cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("estate/properties: image data cannot be empty")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("estate/properties: build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("estate/properties: build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("estate/properties: build multipart body: %w", err)
	}

	var resp uploadResponse
	err = s.uploader.PostMultipart(ctx, "/properties/"+pathEscape(propertyID)+"/image",
		mw.FormDataContentType(), buf.Bytes(), &resp)
	if err != nil {
		return "", wrap("properties", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return "", wrap("properties", err)
	}
	return resp.URL, nil
}
