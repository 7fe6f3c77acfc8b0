package marketplace

import (
	"context"
	"fmt"

	estate "github.com/homequest/estate-go"
	"github.com/homequest/estate-go/api"
)

// AdminUsers implements estate.AdminUserService. All its endpoints require an
// admin or agent session; the server enforces that, this service just passes
// through.
type AdminUsers struct {
	backend Backend
}

var _ estate.AdminUserService = (*AdminUsers)(nil)

// NewAdminUsers creates the back-office user management service.
func NewAdminUsers(backend Backend) *AdminUsers {
	return &AdminUsers{backend: backend}
}

type userResponse struct {
	api.Envelope
	User *estate.Identity `json:"user"`
}

type userListResponse struct {
	api.Envelope
	Users []*estate.Identity `json:"users"`
}

// List returns registered users.
func (s *AdminUsers) List(ctx context.Context, opts estate.ListOptions) ([]*estate.Identity, error) {
	var resp userListResponse
	if err := s.backend.Get(ctx, withQuery("/admin/users", listQuery(opts)), &resp); err != nil {
		return nil, wrap("admin", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("admin", err)
	}
	return resp.Users, nil
}

// UpdateRole changes a user's account role.
func (s *AdminUsers) UpdateRole(ctx context.Context, userID string, userType estate.UserType) (*estate.Identity, error) {
	if userID == "" {
		return nil, fmt.Errorf("estate/admin: user id cannot be empty")
	}
	switch userType {
	case estate.UserTypeUser, estate.UserTypeTenant, estate.UserTypeLandlord,
		estate.UserTypeAgent, estate.UserTypeAdmin:
	default:
		return nil, fmt.Errorf("estate/admin: unknown user type %q", userType)
	}

	var resp userResponse
	body := map[string]string{"user_type": string(userType)}
	if err := s.backend.Put(ctx, "/admin/users/"+pathEscape(userID), body, &resp); err != nil {
		return nil, wrap("admin", err)
	}
	if err := envelopeErr(resp.Envelope); err != nil {
		return nil, wrap("admin", err)
	}
	return resp.User, nil
}

// Delete removes a user account.
func (s *AdminUsers) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("estate/admin: user id cannot be empty")
	}
	var env api.Envelope
	if err := s.backend.Delete(ctx, "/admin/users/"+pathEscape(userID), &env); err != nil {
		return wrap("admin", err)
	}
	if err := envelopeErr(env); err != nil {
		return wrap("admin", err)
	}
	return nil
}
