package estate

import "context"

// CredentialStore persists the bearer token across restarts. It is the sole
// source of truth for whether a session is present. Implementations must be
// safe for concurrent use; a store that cannot read its backing medium
// reports "no token" rather than an error.
// Implementations: credstore/ (file, memory).
type CredentialStore interface {
	// Get returns the persisted token, or false when none is stored.
	Get() (string, bool)

	// Set overwrites the persisted token.
	Set(token string) error

	// Clear removes the persisted token. Clearing an empty store is a no-op.
	Clear() error
}

// TokenRefresher exchanges the current session for a new bearer token and
// persists it. Concurrent calls are coalesced into a single upstream request.
// Implementations: session/ (Manager).
type TokenRefresher interface {
	// RefreshNow performs one refresh and returns the new token.
	RefreshNow(ctx context.Context) (string, error)
}

// AuthResult is the structured outcome of login and registration flows.
// These flows never propagate errors past their own boundary; UI code renders
// Message directly.
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	UserType UserType `json:"user_type" validate:"omitempty,oneof=user tenant landlord agent"`
	Phone    string   `json:"phone,omitempty" validate:"omitempty,e164"`
}

// SessionService manages the authentication lifecycle: identity resolution at
// startup, background token refresh, login/logout/registration, and the role
// checks route guards build on.
// Implementations: session/ (Manager), fake/ for tests.
type SessionService interface {
	TokenRefresher

	// Start resolves the persisted token into an identity, if one is stored,
	// and begins the background refresher on success. It returns once
	// resolution has finished; Loading reports false from then on.
	Start(ctx context.Context)

	// Stop cancels the background refresher. Idempotent.
	Stop()

	// Ready is closed once the initial resolution attempt has completed.
	Ready() <-chan struct{}

	// Loading reports true from construction until initial resolution ends.
	Loading() bool

	// User returns the resolved identity, or nil while unauthenticated.
	User() *Identity

	// Login authenticates with email and password. On success the returned
	// token is persisted, the identity resolved, and the refresher started.
	Login(ctx context.Context, email, password string) AuthResult

	// Logout invalidates the server-side session on a best-effort basis and
	// unconditionally clears all local session state.
	Logout(ctx context.Context)

	// Register creates an account and returns the server's verdict verbatim.
	// It does not log the new account in.
	Register(ctx context.Context, input RegisterInput) AuthResult

	// Role checks derived from the resolved identity. All report false while
	// no user is resolved.
	IsAdmin() bool
	IsAgent() bool
	IsLandlord() bool
	CanAccessAdmin() bool
}

// PropertyService exposes the property listing operations.
type PropertyService interface {
	List(ctx context.Context, filter PropertyFilter) ([]*Property, error)
	Get(ctx context.Context, id string) (*Property, error)
	Create(ctx context.Context, p *Property) (*Property, error)
	Update(ctx context.Context, p *Property) (*Property, error)
	Delete(ctx context.Context, id string) error

	// UploadImage attaches an image to a property via the multipart channel.
	UploadImage(ctx context.Context, propertyID, filename string, data []byte) (string, error)
}

// PropertyFilter narrows List results. Zero values mean "no constraint".
type PropertyFilter struct {
	City        string
	ListingType string
	MinPrice    float64
	MaxPrice    float64
	MinBedrooms int
	ListOptions
}

// TourRequestService exposes tour-request submission and moderation.
type TourRequestService interface {
	Request(ctx context.Context, tr *TourRequest) (*TourRequest, error)
	List(ctx context.Context, opts ListOptions) ([]*TourRequest, error)
	SetStatus(ctx context.Context, id string, status TourRequestStatus) (*TourRequest, error)
}

// ReviewService exposes property reviews.
type ReviewService interface {
	Create(ctx context.Context, r *Review) (*Review, error)
	ListForProperty(ctx context.Context, propertyID string) ([]*Review, error)
}

// AdminUserService exposes the back-office user management operations.
type AdminUserService interface {
	List(ctx context.Context, opts ListOptions) ([]*Identity, error)
	UpdateRole(ctx context.Context, userID string, userType UserType) (*Identity, error)
	Delete(ctx context.Context, userID string) error
}
