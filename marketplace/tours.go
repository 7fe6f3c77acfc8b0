package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	estate "github.com/homequest/estate-go"
	"github.com/homequest/estate-go/api"
)

// TourRequests implements estate.TourRequestService.
type TourRequests struct {
	backend  Backend
	validate *validator.Validate
}

var _ estate.TourRequestService = (*TourRequests)(nil)

// NewTourRequests creates a tour-request service over the given channel.
func NewTourRequests(backend Backend) *TourRequests {
	return &TourRequests{
		backend:  backend,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type tourRequestInput struct {
	PropertyID  string    `json:"property_id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Email       string    `json:"email" validate:"required,email"`
	Phone       string    `json:"phone,omitempty" validate:"omitempty,e164"`
	Message     string    `json:"message,omitempty"`
	RequestedAt time.Time `json:"requested_at,omitempty"`
}

type tourRequestResponse struct {
	api.Envelope
	TourRequest *estate.TourRequest `json:"tour_request"`
}

type tourRequestListResponse struct {
	api.Envelope
	TourRequests []*estate.TourRequest `json:"tour_requests"`
}

// Request submits a tour request for a property.
func (s *TourRequests) Request(ctx context.Context, tr *estate.TourRequest) (*estate.TourRequest, error) {
	in := tourRequestInput{
		PropertyID: tr.PropertyID, Name: tr.Name, Email: tr.Email,
		Phone: tr.Phone, Message: tr.Message, RequestedAt: tr.RequestedAt,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("estate/tours: invalid tour request: %w", err)
	}
	var resp tourRequestResponse
	if err := s.backend.Post(ctx, "/tour-requests", in, &resp); err != nil {
		return nil, wrap("tours", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("tours", err)
	}
	return resp.TourRequest, nil
}

// List returns tour requests for moderation.
func (s *TourRequests) List(ctx context.Context, opts estate.ListOptions) ([]*estate.TourRequest, error) {
	var resp tourRequestListResponse
	if err := s.backend.Get(ctx, withQuery("/tour-requests", listQuery(opts)), &resp); err != nil {
		return nil, wrap("tours", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("tours", err)
	}
	return resp.TourRequests, nil
}

// SetStatus moderates a tour request: approve or reject.
func (s *TourRequests) SetStatus(ctx context.Context, id string, status estate.TourRequestStatus) (*estate.TourRequest, error) {
	if id == "" {
		return nil, fmt.Errorf("estate/tours: id cannot be empty")
	}
	if status != estate.TourRequestApproved && status != estate.TourRequestRejected {
		return nil, fmt.Errorf("estate/tours: status %q is not a moderation verdict", status)
	}
	var resp tourRequestResponse
	body := map[string]string{"status": string(status)}
	if err := s.backend.Put(ctx, "/tour-requests/"+pathEscape(id), body, &resp); err != nil {
		return nil, wrap("tours", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("tours", err)
	}
	return resp.TourRequest, nil
}
