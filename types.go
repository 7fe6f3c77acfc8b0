package estate

import "time"

// UserType enumerates the account roles known to the marketplace.
type UserType string

const (
	UserTypeUser     UserType = "user"
	UserTypeTenant   UserType = "tenant"
	UserTypeLandlord UserType = "landlord"
	UserTypeAgent    UserType = "agent"
	UserTypeAdmin    UserType = "admin"
)

// Identity is the authenticated principal as returned by the remote API.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	UserType     UserType  `json:"user_type"`
	ProfileImage string    `json:"profile_image,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Property is a marketplace listing.
type Property struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	Price       float64   `json:"price"`
	Bedrooms    int       `json:"bedrooms,omitempty"`
	Bathrooms   int       `json:"bathrooms,omitempty"`
	AreaSqm     float64   `json:"area_sqm,omitempty"`
	ListingType string    `json:"listing_type,omitempty"` // "rent" or "sale"
	Images      []string  `json:"images,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// TourRequestStatus enumerates the moderation states of a tour request.
type TourRequestStatus string

const (
	TourRequestPending  TourRequestStatus = "pending"
	TourRequestApproved TourRequestStatus = "approved"
	TourRequestRejected TourRequestStatus = "rejected"
)

// TourRequest is a visitor's request to tour a property.
type TourRequest struct {
	ID          string            `json:"id"`
	PropertyID  string            `json:"property_id"`
	UserID      string            `json:"user_id,omitempty"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone,omitempty"`
	Message     string            `json:"message,omitempty"`
	RequestedAt time.Time         `json:"requested_at,omitempty"`
	Status      TourRequestStatus `json:"status,omitempty"`
	CreatedAt   time.Time         `json:"created_at,omitempty"`
}

// Review is a user review attached to a property.
type Review struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	UserID     string    `json:"user_id,omitempty"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// ListOptions holds pagination parameters for list endpoints.
type ListOptions struct {
	Page     int
	PageSize int
}
