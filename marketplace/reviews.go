package marketplace

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	estate "github.com/homequest/estate-go"
	"github.com/homequest/estate-go/api"
)

// Reviews implements estate.ReviewService.
type Reviews struct {
	backend  Backend
	validate *validator.Validate
}

var _ estate.ReviewService = (*Reviews)(nil)

// NewReviews creates a review service over the given channel.
func NewReviews(backend Backend) *Reviews {
	return &Reviews{
		backend:  backend,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type reviewInput struct {
	PropertyID string `json:"property_id" validate:"required"`
	Rating     int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment    string `json:"comment,omitempty"`
}

type reviewResponse struct {
	api.Envelope
	Review *estate.Review `json:"review"`
}

type reviewListResponse struct {
	api.Envelope
	Reviews []*estate.Review `json:"reviews"`
}

// Create posts a review for a property.
func (s *Reviews) Create(ctx context.Context, r *estate.Review) (*estate.Review, error) {
	in := reviewInput{PropertyID: r.PropertyID, Rating: r.Rating, Comment: r.Comment}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("estate/reviews: invalid review: %w", err)
	}
	var resp reviewResponse
	if err := s.backend.Post(ctx, "/reviews", in, &resp); err != nil {
		return nil, wrap("reviews", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("reviews", err)
	}
	return resp.Review, nil
}

// ListForProperty returns the reviews attached to a property.
func (s *Reviews) ListForProperty(ctx context.Context, propertyID string) ([]*estate.Review, error) {
	if propertyID == "" {
		return nil, fmt.Errorf("estate/reviews: property id cannot be empty")
	}
	var resp reviewListResponse
	if err := s.backend.Get(ctx, "/properties/"+pathEscape(propertyID)+"/reviews", &resp); err != nil {
		return nil, wrap("reviews", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("reviews", err)
	}
	return resp.Reviews, nil
}
