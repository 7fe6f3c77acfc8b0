// Package session implements estate.SessionService: the authentication
// lifecycle of the marketplace client.
//
// A Manager owns the runtime session state (resolved identity, loading flag),
// resolves a persisted token into an identity at startup, renews the token on
// a fixed cadence in the background, and exposes the role checks route guards
// are built on. All token-refresh attempts, whether from the periodic tick or
// the API channel's 401 recovery, are coalesced through a single singleflight
// group, so racing refreshes collapse into one upstream call.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	estate "github.com/homequest/estate-go"
	"github.com/homequest/estate-go/api"
	"github.com/homequest/estate-go/metrics"
	"golang.org/x/sync/singleflight"
)

// Endpoint paths of the remote auth contract.
const (
	pathRefresh  = "/auth/refresh"
	pathLogin    = "/users/login"
	pathLogout   = "/users/logout"
	pathRegister = "/users/register"
	pathGetUser  = "/users/get_user"
)

// Manager is the session lifecycle manager.
type Manager struct {
	store estate.CredentialStore

	// channel carries every auth call except the refresh itself and recovers
	// from a 401 by refreshing through this manager. refreshChannel is bare:
	// a refresh request must never trigger another refresh.
	channel        *api.Channel
	refreshChannel *api.Channel

	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	validate   *validator.Validate
	interval   time.Duration

	mu      sync.RWMutex
	user    *estate.Identity
	loading bool

	readyOnce sync.Once
	readyCh   chan struct{}

	// refreshMu guards the timer handle. At most one refresher goroutine is
	// live at any time; starting a new one stops any prior one first.
	refreshMu   sync.Mutex
	refreshStop chan struct{}

	sf singleflight.Group
}

var _ estate.SessionService = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the Prometheus instrumentation.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithHTTPClient sets the HTTP client used for the auth endpoints.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// New creates a session manager over the given credential store.
//
// The manager owns two JSON channels. Identity, login, logout, and
// registration calls run on a retrying channel, so an expired-but-renewable
// token recovers through the one-shot refresh instead of ending the session.
// The refresh call itself runs on a plain channel with no 401 recovery, which
// keeps the refresh from ever triggering another refresh. Loading reports
// true until Start has completed its initial resolution attempt.
func New(cfg estate.Config, store estate.CredentialStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		interval: cfg.RefreshInterval,
		loading:  true,
		readyCh:  make(chan struct{}),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, o := range opts {
		o(m)
	}
	if m.interval <= 0 {
		m.interval = estate.DefaultRefreshInterval
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.metrics == nil {
		m.metrics = metrics.New(false)
	}

	chOpts := []api.Option{api.WithLogger(m.logger), api.WithMetrics(m.metrics)}
	if m.httpClient != nil {
		chOpts = append(chOpts, api.WithHTTPClient(m.httpClient))
	}
	m.refreshChannel = api.NewJSON(cfg.BaseURL, store, chOpts...)
	m.channel = api.NewJSON(cfg.BaseURL, store, append(chOpts, api.WithRetry(m, nil))...)
	return m
}

// tokenResponse is the shape of login and refresh replies.
type tokenResponse struct {
	api.Envelope
	Token string `json:"token"`
}

// userResponse is the shape of the current-identity reply.
type userResponse struct {
	api.Envelope
	User *estate.Identity `json:"user"`
}

// Start resolves the persisted token into an identity. With no token stored
// it returns immediately without any network call. An expired token is
// renewed transparently by the channel's 401 recovery before the identity
// fetch is replayed; only an irrecoverable rejection or failure tears the
// session down. In every branch the loading flag ends up false and Ready is
// closed.
func (m *Manager) Start(ctx context.Context) {
	defer m.finishLoading()

	if _, ok := m.store.Get(); !ok {
		return
	}

	var resp userResponse
	err := m.channel.Get(ctx, pathGetUser, &resp)
	if err != nil || !resp.Success || resp.User == nil {
		m.logger.Warn("stored session could not be resolved, logging out", "error", err)
		m.metrics.RecordForcedLogout("identity_rejected")
		m.Logout(ctx)
		return
	}

	m.setUser(resp.User)
	m.logger.Info("session resolved", "user_id", resp.User.ID, "user_type", resp.User.UserType)
	m.startRefresher()
}

func (m *Manager) finishLoading() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
	m.readyOnce.Do(func() { close(m.readyCh) })
}

// Ready is closed once the initial resolution attempt has completed.
func (m *Manager) Ready() <-chan struct{} { return m.readyCh }

// Loading reports true from construction until initial resolution ends.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// User returns the resolved identity, or nil while unauthenticated.
func (m *Manager) User() *estate.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *Manager) setUser(u *estate.Identity) {
	m.mu.Lock()
	m.user = u
	m.mu.Unlock()
	m.metrics.SetAuthenticated(u != nil)
}

// RefreshNow exchanges the current session for a new token and persists it.
// Concurrent callers share one upstream request. The store write is
// last-write-wins by design; a refresh already in flight when the session is
// torn down may still land a token afterwards.
func (m *Manager) RefreshNow(ctx context.Context) (string, error) {
	v, err, _ := m.sf.Do("refresh", func() (any, error) {
		var resp tokenResponse
		if err := m.refreshChannel.Post(ctx, pathRefresh, nil, &resp); err != nil {
			return "", fmt.Errorf("session: refresh: %w", err)
		}
		if !resp.Success || resp.Token == "" {
			msg := resp.Message
			if msg == "" {
				msg = estate.GenericErrorMessage
			}
			return "", fmt.Errorf("session: refresh rejected: %w",
				&estate.APIError{StatusCode: http.StatusOK, Message: msg})
		}
		if err := m.store.Set(resp.Token); err != nil {
			return "", fmt.Errorf("session: persist refreshed token: %w", err)
		}
		return resp.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates with email and password. On success the token is
// persisted, the identity resolved, and the refresher started. Failures are
// reported as a structured result with the server's message where one exists;
// this boundary never propagates an error.
func (m *Manager) Login(ctx context.Context, email, password string) estate.AuthResult {
	input := loginInput{Email: email, Password: password}
	if err := m.validate.Struct(input); err != nil {
		return estate.AuthResult{Message: "a valid email and a password are required"}
	}

	var resp tokenResponse
	if err := m.channel.Post(ctx, pathLogin, input, &resp); err != nil {
		return resultFromError(err)
	}
	if !resp.Success || resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = estate.GenericErrorMessage
		}
		return estate.AuthResult{Message: msg}
	}

	if err := m.store.Set(resp.Token); err != nil {
		m.logger.Error("login succeeded but token could not be persisted", "error", err)
		return estate.AuthResult{Message: estate.GenericErrorMessage}
	}
	m.metrics.RecordTokenRefresh("login", "success")

	var ur userResponse
	if err := m.channel.Get(ctx, pathGetUser, &ur); err == nil && ur.Success && ur.User != nil {
		m.setUser(ur.User)
	} else {
		// The token stays persisted even when the profile fetch fails.
		// Until a later Start resolves it, guards see the session as
		// anonymous.
		m.logger.Warn("identity fetch after login failed", "error", err)
	}

	m.startRefresher()
	return estate.AuthResult{Success: true}
}

// Logout invalidates the server-side session on a best-effort basis. Local
// cleanup (clearing the token, dropping the identity, stopping the refresher)
// runs unconditionally, even if the network call fails.
func (m *Manager) Logout(ctx context.Context) {
	defer func() {
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("clearing credential store failed", "error", err)
		}
		m.setUser(nil)
		m.Stop()
	}()

	var env api.Envelope
	if err := m.channel.Post(ctx, pathLogout, nil, &env); err != nil {
		m.logger.Warn("logout endpoint call failed", "error", err)
	}
}

// Register creates an account and returns the server's verdict verbatim.
// It does not log the new account in.
func (m *Manager) Register(ctx context.Context, input estate.RegisterInput) estate.AuthResult {
	if err := m.validate.Struct(input); err != nil {
		return estate.AuthResult{Message: fmt.Sprintf("invalid registration payload: %v", err)}
	}

	var env api.Envelope
	if err := m.channel.Post(ctx, pathRegister, input, &env); err != nil {
		return resultFromError(err)
	}
	return estate.AuthResult{Success: env.Success, Message: env.Message}
}

func resultFromError(err error) estate.AuthResult {
	if apiErr, ok := estate.AsAPIError(err); ok {
		return estate.AuthResult{Message: apiErr.Message}
	}
	return estate.AuthResult{Message: estate.GenericErrorMessage}
}

// IsAdmin reports whether the resolved identity is an admin.
func (m *Manager) IsAdmin() bool { return m.hasType(estate.UserTypeAdmin) }

// IsAgent reports whether the resolved identity is an agent.
func (m *Manager) IsAgent() bool { return m.hasType(estate.UserTypeAgent) }

// IsLandlord reports whether the resolved identity is a landlord.
func (m *Manager) IsLandlord() bool { return m.hasType(estate.UserTypeLandlord) }

// CanAccessAdmin reports whether the resolved identity may enter the
// back-office: admins and agents only.
func (m *Manager) CanAccessAdmin() bool { return m.IsAdmin() || m.IsAgent() }

func (m *Manager) hasType(ut estate.UserType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil && m.user.UserType == ut
}
