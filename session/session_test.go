package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	estate "github.com/homequest/estate-go"
	"github.com/homequest/estate-go/credstore"
	"github.com/homequest/estate-go/session"
)

// authBackend is a minimal in-memory rendition of the remote auth contract.
// With validToken set, the identity endpoint 401s any other bearer token and
// the refresh endpoint hands validToken out.
type authBackend struct {
	userType     estate.UserType
	validToken   string
	rejectUser   bool
	rejectToken  bool
	refreshDelay time.Duration

	refreshCalls int32
	getUserCalls int32
	logoutCalls  int32
}

func (b *authBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		if b.rejectToken {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "session expired"})
			return
		}
		token := b.validToken
		if token == "" {
			token = fmt.Sprintf("renewed-%d", atomic.LoadInt32(&b.refreshCalls))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "token": token})
	})
	mux.HandleFunc("GET /users/get_user", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.getUserCalls, 1)
		if b.validToken != "" && r.Header.Get("Authorization") != "Bearer "+b.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "token expired"})
			return
		}
		if b.rejectUser {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user": map[string]any{
				"id":        "u-1",
				"name":      "Dana",
				"email":     "dana@example.com",
				"user_type": string(b.userType),
			},
		})
	})
	mux.HandleFunc("POST /users/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.logoutCalls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	mux.HandleFunc("POST /users/login", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "hunter2hunter2" {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "wrong email or password"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "token": "login-token"})
	})
	mux.HandleFunc("POST /users/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "check your inbox"})
	})
	return mux
}

func newManager(t *testing.T, b *authBackend, store estate.CredentialStore, interval time.Duration) (*session.Manager, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)

	m := session.New(estate.Config{
		BaseURL:         server.URL,
		RefreshInterval: interval,
	}, store)
	t.Cleanup(m.Stop)
	return m, server
}

func TestStart_NoToken(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeAgent}
	store := credstore.NewMemory()
	m, _ := newManager(t, b, store, time.Minute)

	if !m.Loading() {
		t.Error("Loading() should be true before Start")
	}
	m.Start(context.Background())

	if m.Loading() {
		t.Error("Loading() should be false after Start")
	}
	if m.User() != nil {
		t.Error("User() should be nil without a stored token")
	}
	if got := atomic.LoadInt32(&b.getUserCalls); got != 0 {
		t.Errorf("identity endpoint hit %d times, want 0", got)
	}
}

func TestStart_ResolvesIdentityAndStartsRefresher(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeAgent}
	store := credstore.NewMemory()
	_ = store.Set("persisted-token")
	m, _ := newManager(t, b, store, 100*time.Millisecond)

	m.Start(context.Background())

	user := m.User()
	if user == nil || user.UserType != estate.UserTypeAgent {
		t.Fatalf("User() = %+v, want agent identity", user)
	}
	if m.Loading() {
		t.Error("Loading() should be false after Start")
	}
	select {
	case <-m.Ready():
	default:
		t.Error("Ready() should be closed after Start")
	}

	// A subsequent tick issues a refresh call and persists the new token.
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&b.refreshCalls); got < 1 {
		t.Error("refresher did not tick")
	}
	if tok, _ := store.Get(); tok == "persisted-token" {
		t.Error("refreshed token was not persisted")
	}
}

func TestStart_RejectedIdentityTearsDownSession(t *testing.T) {
	b := &authBackend{rejectUser: true}
	store := credstore.NewMemory()
	_ = store.Set("persisted-token")
	m, _ := newManager(t, b, store, time.Minute)

	m.Start(context.Background())

	if _, ok := store.Get(); ok {
		t.Error("token should be cleared after rejected resolution")
	}
	if m.User() != nil {
		t.Error("User() should be nil after rejected resolution")
	}
	if m.Loading() {
		t.Error("Loading() must not stay true after a failed resolution")
	}
}

func TestStart_ExpiredTokenIsRefreshedNotLoggedOut(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeTenant, validToken: "fresh-token"}
	store := credstore.NewMemory()
	_ = store.Set("stale-token")
	m, _ := newManager(t, b, store, time.Minute)

	m.Start(context.Background())

	if got := atomic.LoadInt32(&b.refreshCalls); got != 1 {
		t.Fatalf("refresh calls = %d, want 1", got)
	}
	if m.User() == nil {
		t.Fatal("User() = nil, want identity resolved through the refreshed token")
	}
	token, ok := store.Get()
	if !ok {
		t.Fatal("token was cleared; a renewable session must survive startup")
	}
	if token != "fresh-token" {
		t.Errorf("stored token = %q, want the refreshed one", token)
	}
}

func TestRefresher_Cadence(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeUser}
	store := credstore.NewMemory()
	_ = store.Set("persisted-token")
	m, _ := newManager(t, b, store, 100*time.Millisecond)

	m.Start(context.Background())
	time.Sleep(250 * time.Millisecond)
	m.Stop()

	if got := atomic.LoadInt32(&b.refreshCalls); got != 2 {
		t.Errorf("refresh calls = %d, want 2 in two intervals", got)
	}
}

func TestRefresher_SkipsTicksWithoutToken(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeUser}
	store := credstore.NewMemory()
	_ = store.Set("persisted-token")
	m, _ := newManager(t, b, store, 80*time.Millisecond)

	m.Start(context.Background())
	_ = store.Clear()
	time.Sleep(200 * time.Millisecond)

	if got := atomic.LoadInt32(&b.refreshCalls); got != 0 {
		t.Errorf("refresh calls = %d, want 0 once the token is gone", got)
	}
}

func TestRefresher_RejectedRefreshForcesLogout(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeUser, rejectToken: true}
	store := credstore.NewMemory()
	_ = store.Set("persisted-token")
	m, _ := newManager(t, b, store, 60*time.Millisecond)

	m.Start(context.Background())
	time.Sleep(200 * time.Millisecond)

	if _, ok := store.Get(); ok {
		t.Error("token should be cleared after the server rejected a refresh")
	}
	if m.User() != nil {
		t.Error("User() should be nil after forced logout")
	}
	if got := atomic.LoadInt32(&b.refreshCalls); got != 1 {
		t.Errorf("refresh calls = %d, want 1 (timer cancelled after rejection)", got)
	}
}

func TestLogin_Success(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeLandlord}
	store := credstore.NewMemory()
	m, _ := newManager(t, b, store, time.Minute)

	res := m.Login(context.Background(), "dana@example.com", "hunter2hunter2")
	if !res.Success {
		t.Fatalf("Login() = %+v, want success", res)
	}
	if tok, _ := store.Get(); tok != "login-token" {
		t.Errorf("stored token = %q, want login-token", tok)
	}
	if u := m.User(); u == nil || u.UserType != estate.UserTypeLandlord {
		t.Errorf("User() = %+v, want landlord identity", u)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	b := &authBackend{}
	store := credstore.NewMemory()
	m, _ := newManager(t, b, store, time.Minute)

	res := m.Login(context.Background(), "dana@example.com", "wrong")
	if res.Success {
		t.Fatal("Login() should fail")
	}
	if res.Message != "wrong email or password" {
		t.Errorf("Message = %q, want server message", res.Message)
	}
	if _, ok := store.Get(); ok {
		t.Error("no token may be stored after a failed login")
	}
}

func TestLogin_NetworkFailureReportsGenericMessage(t *testing.T) {
	b := &authBackend{}
	store := credstore.NewMemory()
	m, server := newManager(t, b, store, time.Minute)
	server.Close()

	res := m.Login(context.Background(), "dana@example.com", "hunter2hunter2")
	if res.Success {
		t.Fatal("Login() should fail when the server is unreachable")
	}
	if res.Message != estate.GenericErrorMessage {
		t.Errorf("Message = %q, want %q", res.Message, estate.GenericErrorMessage)
	}
}

func TestLogin_RejectsInvalidInputLocally(t *testing.T) {
	b := &authBackend{}
	m, _ := newManager(t, b, credstore.NewMemory(), time.Minute)

	res := m.Login(context.Background(), "not-an-email", "pw")
	if res.Success {
		t.Fatal("Login() should fail validation")
	}
}

func TestLogin_ProfileFetchFailureLeavesTokenUsable(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeLandlord, rejectUser: true}
	store := credstore.NewMemory()
	m, _ := newManager(t, b, store, time.Minute)

	res := m.Login(context.Background(), "dana@example.com", "hunter2hunter2")
	if !res.Success {
		t.Fatalf("Login() failed: %q", res.Message)
	}
	if m.User() != nil {
		t.Error("User() should stay nil while the profile fetch keeps failing")
	}
	if _, ok := store.Get(); !ok {
		t.Fatal("token must stay persisted when only the profile fetch failed")
	}

	// A later Start resolves the identity from the persisted token.
	b.rejectUser = false
	m.Start(context.Background())
	if m.User() == nil {
		t.Error("User() = nil, want identity resolved on the next Start")
	}
}

func TestLogout_CleanupRunsWhenServerIsDown(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeAdmin}
	store := credstore.NewMemory()
	_ = store.Set("persisted-token")
	m, server := newManager(t, b, store, 50*time.Millisecond)
	m.Start(context.Background())

	server.Close()
	base := atomic.LoadInt32(&b.refreshCalls)
	m.Logout(context.Background())

	if _, ok := store.Get(); ok {
		t.Error("token must be cleared even when the logout call fails")
	}
	if m.User() != nil {
		t.Error("User() must be nil even when the logout call fails")
	}
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&b.refreshCalls); got != base {
		t.Error("refresher must be stopped even when the logout call fails")
	}
}

func TestRegister_VerbatimPassthrough(t *testing.T) {
	b := &authBackend{}
	m, _ := newManager(t, b, credstore.NewMemory(), time.Minute)

	res := m.Register(context.Background(), estate.RegisterInput{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "hunter2hunter2",
		UserType: estate.UserTypeTenant,
	})
	if !res.Success || res.Message != "check your inbox" {
		t.Errorf("Register() = %+v, want server payload verbatim", res)
	}
	if u := m.User(); u != nil {
		t.Error("Register() must not log the account in")
	}
}

func TestRegister_ValidatesInput(t *testing.T) {
	b := &authBackend{}
	m, _ := newManager(t, b, credstore.NewMemory(), time.Minute)

	res := m.Register(context.Background(), estate.RegisterInput{Email: "nope"})
	if res.Success {
		t.Fatal("Register() should fail validation")
	}
}

func TestRoleDerivation(t *testing.T) {
	cases := []struct {
		userType       estate.UserType
		isAdmin        bool
		isAgent        bool
		isLandlord     bool
		canAccessAdmin bool
	}{
		{estate.UserTypeUser, false, false, false, false},
		{estate.UserTypeTenant, false, false, false, false},
		{estate.UserTypeLandlord, false, false, true, false},
		{estate.UserTypeAgent, false, true, false, true},
		{estate.UserTypeAdmin, true, false, false, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.userType), func(t *testing.T) {
			b := &authBackend{userType: tc.userType}
			store := credstore.NewMemory()
			_ = store.Set("persisted-token")
			m, _ := newManager(t, b, store, time.Minute)
			m.Start(context.Background())

			if got := m.IsAdmin(); got != tc.isAdmin {
				t.Errorf("IsAdmin() = %v, want %v", got, tc.isAdmin)
			}
			if got := m.IsAgent(); got != tc.isAgent {
				t.Errorf("IsAgent() = %v, want %v", got, tc.isAgent)
			}
			if got := m.IsLandlord(); got != tc.isLandlord {
				t.Errorf("IsLandlord() = %v, want %v", got, tc.isLandlord)
			}
			if got := m.CanAccessAdmin(); got != tc.canAccessAdmin {
				t.Errorf("CanAccessAdmin() = %v, want %v", got, tc.canAccessAdmin)
			}
		})
	}
}

func TestRoleDerivation_NilUser(t *testing.T) {
	b := &authBackend{}
	m, _ := newManager(t, b, credstore.NewMemory(), time.Minute)
	m.Start(context.Background())

	if m.IsAdmin() || m.IsAgent() || m.IsLandlord() || m.CanAccessAdmin() {
		t.Error("all role checks must be false while no user is resolved")
	}
}

func TestRefreshNow_CoalescesConcurrentCallers(t *testing.T) {
	b := &authBackend{userType: estate.UserTypeUser, refreshDelay: 60 * time.Millisecond}
	store := credstore.NewMemory()
	_ = store.Set("persisted-token")
	m, _ := newManager(t, b, store, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.RefreshNow(context.Background()); err != nil {
				t.Errorf("RefreshNow() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&b.refreshCalls); got != 1 {
		t.Errorf("refresh calls = %d, want 1 (coalesced)", got)
	}
}
