// Package estate provides a Go SDK for the HomeQuest real-estate marketplace
// API: session and authentication lifecycle management, role-based
// authorization checks, and typed access to properties, tour requests,
// reviews, and back-office user management.
//
// The SDK defines interfaces for credential storage, session management, and
// the marketplace resources. Concrete implementations are injected via Option
// functions, so application code depends only on this package:
//
//	store := credstore.NewFile(path)
//	sess := session.New(cfg, store)
//	client, err := estate.NewClient(cfg,
//	    estate.WithCredentialStore(store),
//	    estate.WithSessionService(sess),
//	)
package estate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultRefreshInterval is the cadence of the background token refresher.
const DefaultRefreshInterval = 5 * time.Minute

// Config holds connection and behavior configuration.
type Config struct {
	// BaseURL is the address of the remote marketplace API. Required.
	BaseURL string

	// RefreshInterval is how often the background refresher renews the
	// bearer token. Default: 5 minutes.
	RefreshInterval time.Duration

	// LoginPath is where the application sends users whose session could
	// not be recovered. Default: "/login".
	LoginPath string

	// AdminLoginPath is the entry point for the admin back-office.
	// Default: "/admin/login".
	AdminLoginPath string

	// HomePath is the authenticated landing page, used when an
	// already-signed-in user hits an anonymous-only route. Default: "/".
	HomePath string

	// MetricsEnabled turns on Prometheus instrumentation.
	MetricsEnabled bool
}

// Client is the main entry point for marketplace operations.
// Service implementations are injected via Option functions.
type Client struct {
	config  Config
	logger  *slog.Logger
	store   CredentialStore
	session SessionService
	props   PropertyService
	tours   TourRequestService
	reviews ReviewService
	admin   AdminUserService
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCredentialStore sets the token storage implementation.
func WithCredentialStore(s CredentialStore) Option {
	return func(c *Client) { c.store = s }
}

// WithSessionService sets the session lifecycle implementation.
func WithSessionService(s SessionService) Option {
	return func(c *Client) { c.session = s }
}

// WithPropertyService sets the property listing implementation.
func WithPropertyService(p PropertyService) Option {
	return func(c *Client) { c.props = p }
}

// WithTourRequestService sets the tour-request implementation.
func WithTourRequestService(t TourRequestService) Option {
	return func(c *Client) { c.tours = t }
}

// WithReviewService sets the review implementation.
func WithReviewService(r ReviewService) Option {
	return func(c *Client) { c.reviews = r }
}

// WithAdminUserService sets the back-office user management implementation.
func WithAdminUserService(a AdminUserService) Option {
	return func(c *Client) { c.admin = a }
}

// NewClient creates a new marketplace client with the given configuration
// and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("estate: BaseURL is required")
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.AdminLoginPath == "" {
		cfg.AdminLoginPath = "/admin/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}

	c := &Client{config: cfg}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Store returns the credential store, or nil if not configured.
func (c *Client) Store() CredentialStore { return c.store }

// Session returns the session service, or nil if not configured.
func (c *Client) Session() SessionService { return c.session }

// Properties returns the property service, or nil if not configured.
func (c *Client) Properties() PropertyService { return c.props }

// TourRequests returns the tour-request service, or nil if not configured.
func (c *Client) TourRequests() TourRequestService { return c.tours }

// Reviews returns the review service, or nil if not configured.
func (c *Client) Reviews() ReviewService { return c.reviews }

// AdminUsers returns the user management service, or nil if not configured.
func (c *Client) AdminUsers() AdminUserService { return c.admin }

// Start resolves any persisted session and, when one exists, starts the
// background refresher. It returns once the initial resolution attempt has
// completed.
func (c *Client) Start(ctx context.Context) {
	if c.session != nil {
		c.session.Start(ctx)
	}
}

// Close stops the session refresher and releases all resources held by the
// client. Any injected service that implements io.Closer will be closed.
func (c *Client) Close() error {
	if c.session != nil {
		c.session.Stop()
	}
	closers := []any{
		c.store, c.session, c.props,
		c.tours, c.reviews, c.admin,
	}
	var firstErr error
	for _, svc := range closers {
		if cl, ok := svc.(io.Closer); ok && cl != nil {
			if err := cl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
