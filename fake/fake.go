// Package fake provides an in-memory rendition of the remote marketplace API
// for tests and examples.
//
// Use fake.NewServer() to get a real HTTP server honoring the auth and
// marketplace contracts without any external dependency. Tokens are HS256
// JWTs minted by the server itself; possession is all the server checks
// beyond signature and expiry, matching the bearer-token trust model.
package fake

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	estate "github.com/homequest/estate-go"
)

// Server is the in-memory marketplace backend.
type Server struct {
	mu         sync.RWMutex
	users      map[string]*estate.Identity // userID → identity
	passwords  map[string]string           // email → password
	emails     map[string]string           // email → userID
	properties map[string]*estate.Property
	tours      map[string]*estate.TourRequest
	reviews    map[string][]*estate.Review // propertyID → reviews
	revoked    map[string]bool             // token → revoked

	signingKey []byte
	tokenTTL   time.Duration

	refreshCalls int
	getUserCalls int

	http *httptest.Server
}

// Option seeds the fake server.
type Option func(*Server)

// WithUser adds an account with a login password.
func WithUser(id string, userType estate.UserType, email, password string) Option {
	return func(s *Server) {
		s.users[id] = &estate.Identity{
			ID:        id,
			Name:      strings.SplitN(email, "@", 2)[0],
			Email:     email,
			UserType:  userType,
			CreatedAt: time.Now(),
		}
		s.passwords[email] = password
		s.emails[email] = id
	}
}

// WithProperty adds a listing.
func WithProperty(p *estate.Property) Option {
	return func(s *Server) {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.properties[p.ID] = p
	}
}

// WithTokenTTL overrides the lifetime of minted tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// NewServer starts the fake backend on a local listener.
func NewServer(opts ...Option) *Server {
	s := &Server{
		users:      make(map[string]*estate.Identity),
		passwords:  make(map[string]string),
		emails:     make(map[string]string),
		properties: make(map[string]*estate.Property),
		tours:      make(map[string]*estate.TourRequest),
		reviews:    make(map[string][]*estate.Review),
		revoked:    make(map[string]bool),
		signingKey: []byte(uuid.NewString()),
		tokenTTL:   time.Hour,
	}
	for _, o := range opts {
		o(s)
	}
	s.http = httptest.NewServer(s.handler())
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string { return s.http.URL }

// Close shuts the server down.
func (s *Server) Close() { s.http.Close() }

// IssueToken mints a valid bearer token for an existing user, for seeding a
// credential store without going through login.
func (s *Server) IssueToken(userID string) string {
	token, err := s.mintToken(userID)
	if err != nil {
		panic(fmt.Sprintf("fake: issue token: %v", err))
	}
	return token
}

// RefreshCalls reports how many times the refresh endpoint was hit.
func (s *Server) RefreshCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshCalls
}

// GetUserCalls reports how many times the identity endpoint was hit.
func (s *Server) GetUserCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUserCalls
}

func (s *Server) mintToken(userID string) (string, error) {
	s.mu.RLock()
	_, ok := s.users[userID]
	ttl := s.tokenTTL
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown user %q", userID)
	}
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// authenticate resolves the bearer token on a request to a user, or nil.
func (s *Server) authenticate(r *http.Request) *estate.Identity {
	auth := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || raw == "" {
		return nil
	}

	s.mu.RLock()
	revoked := s.revoked[raw]
	s.mu.RUnlock()
	if revoked {
		return nil
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[claims.Subject]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /users/login", s.handleLogin)
	mux.HandleFunc("POST /users/logout", s.handleLogout)
	mux.HandleFunc("POST /users/register", s.handleRegister)
	mux.HandleFunc("GET /users/get_user", s.handleGetUser)

	mux.HandleFunc("GET /properties", s.handleListProperties)
	mux.HandleFunc("POST /properties", s.handleCreateProperty)
	mux.HandleFunc("GET /properties/{id}", s.handleGetProperty)
	mux.HandleFunc("PUT /properties/{id}", s.handleUpdateProperty)
	mux.HandleFunc("DELETE /properties/{id}", s.handleDeleteProperty)
	mux.HandleFunc("POST /properties/{id}/image", s.handleUploadImage)
	mux.HandleFunc("GET /properties/{id}/reviews", s.handleListReviews)
	mux.HandleFunc("POST /reviews", s.handleCreateReview)

	mux.HandleFunc("POST /tour-requests", s.handleCreateTour)
	mux.HandleFunc("GET /tour-requests", s.handleListTours)
	mux.HandleFunc("PUT /tour-requests/{id}", s.handleModerateTour)

	mux.HandleFunc("GET /admin/users", s.handleAdminListUsers)
	mux.HandleFunc("PUT /admin/users/{id}", s.handleAdminUpdateUser)
	mux.HandleFunc("DELETE /admin/users/{id}", s.handleAdminDeleteUser)

	return mux
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.refreshCalls++
	s.mu.Unlock()

	user := s.authenticate(r)
	if user == nil {
		writeFailure(w, http.StatusUnauthorized, "session expired")
		return
	}
	token, err := s.mintToken(user.ID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "token minting failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed login payload")
		return
	}

	s.mu.RLock()
	password, ok := s.passwords[in.Email]
	userID := s.emails[in.Email]
	s.mu.RUnlock()
	if !ok || password != in.Password {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "wrong email or password"})
		return
	}

	token, err := s.mintToken(userID)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "token minting failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		s.mu.Lock()
		s.revoked[raw] = true
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in estate.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed registration payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.emails[in.Email]; exists {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "email already registered"})
		return
	}
	id := uuid.NewString()
	userType := in.UserType
	if userType == "" {
		userType = estate.UserTypeUser
	}
	s.users[id] = &estate.Identity{
		ID: id, Name: in.Name, Email: in.Email,
		UserType: userType, Phone: in.Phone, CreatedAt: time.Now(),
	}
	s.passwords[in.Email] = in.Password
	s.emails[in.Email] = id
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "account created"})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.getUserCalls++
	s.mu.Unlock()

	user := s.authenticate(r)
	if user == nil {
		writeFailure(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")

	s.mu.RLock()
	defer s.mu.RUnlock()
	props := make([]*estate.Property, 0, len(s.properties))
	for _, p := range s.properties {
		if city != "" && p.City != city {
			continue
		}
		props = append(props, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "properties": props})
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	p, ok := s.properties[r.PathValue("id")]
	s.mu.RUnlock()
	if !ok {
		writeFailure(w, http.StatusNotFound, "property not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "property": p})
}

// requireBackOffice admits admins and agents.
func (s *Server) requireBackOffice(w http.ResponseWriter, r *http.Request) *estate.Identity {
	user := s.authenticate(r)
	if user == nil {
		writeFailure(w, http.StatusUnauthorized, "invalid token")
		return nil
	}
	if user.UserType != estate.UserTypeAdmin && user.UserType != estate.UserTypeAgent {
		writeFailure(w, http.StatusForbidden, "admins only")
		return nil
	}
	return user
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	user := s.requireBackOffice(w, r)
	if user == nil {
		return
	}
	var p estate.Property
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed property payload")
		return
	}
	p.ID = uuid.NewString()
	p.OwnerID = user.ID
	p.CreatedAt = time.Now()

	s.mu.Lock()
	s.properties[p.ID] = &p
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "property": &p})
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	if s.requireBackOffice(w, r) == nil {
		return
	}
	id := r.PathValue("id")
	var in estate.Property
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed property payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok {
		writeFailure(w, http.StatusNotFound, "property not found")
		return
	}
	in.ID = p.ID
	in.OwnerID = p.OwnerID
	in.CreatedAt = p.CreatedAt
	in.UpdatedAt = time.Now()
	s.properties[id] = &in
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "property": &in})
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	if s.requireBackOffice(w, r) == nil {
		return
	}
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[id]; !ok {
		writeFailure(w, http.StatusNotFound, "property not found")
		return
	}
	delete(s.properties, id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if s.requireBackOffice(w, r) == nil {
		return
	}
	id := r.PathValue("id")
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed multipart body")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "image field missing")
		return
	}
	defer func() { _ = file.Close() }()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeFailure(w, http.StatusBadRequest, "unreadable image")
		return
	}

	url := fmt.Sprintf("%s/static/%s/%s", s.http.URL, id, header.Filename)
	s.mu.Lock()
	if p, ok := s.properties[id]; ok {
		p.Images = append(p.Images, url)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

func (s *Server) handleCreateTour(w http.ResponseWriter, r *http.Request) {
	var tr estate.TourRequest
	if err := json.NewDecoder(r.Body).Decode(&tr); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed tour request")
		return
	}
	user := s.authenticate(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[tr.PropertyID]; !ok {
		writeFailure(w, http.StatusNotFound, "property not found")
		return
	}
	tr.ID = uuid.NewString()
	tr.Status = estate.TourRequestPending
	tr.CreatedAt = time.Now()
	if user != nil {
		tr.UserID = user.ID
	}
	s.tours[tr.ID] = &tr
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tour_request": &tr})
}

func (s *Server) handleListTours(w http.ResponseWriter, r *http.Request) {
	if s.requireBackOffice(w, r) == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tours := make([]*estate.TourRequest, 0, len(s.tours))
	for _, tr := range s.tours {
		tours = append(tours, tr)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tour_requests": tours})
}

func (s *Server) handleModerateTour(w http.ResponseWriter, r *http.Request) {
	if s.requireBackOffice(w, r) == nil {
		return
	}
	var in struct {
		Status estate.TourRequestStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed moderation payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.tours[r.PathValue("id")]
	if !ok {
		writeFailure(w, http.StatusNotFound, "tour request not found")
		return
	}
	tr.Status = in.Status
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tour_request": tr})
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	user := s.authenticate(r)
	if user == nil {
		writeFailure(w, http.StatusUnauthorized, "invalid token")
		return
	}
	var rv estate.Review
	if err := json.NewDecoder(r.Body).Decode(&rv); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed review payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.properties[rv.PropertyID]; !ok {
		writeFailure(w, http.StatusNotFound, "property not found")
		return
	}
	rv.ID = uuid.NewString()
	rv.UserID = user.ID
	rv.CreatedAt = time.Now()
	s.reviews[rv.PropertyID] = append(s.reviews[rv.PropertyID], &rv)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "review": &rv})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reviews := s.reviews[r.PathValue("id")]
	if reviews == nil {
		reviews = []*estate.Review{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reviews": reviews})
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	if s.requireBackOffice(w, r) == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*estate.Identity, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	if s.requireBackOffice(w, r) == nil {
		return
	}
	var in struct {
		UserType estate.UserType `json:"user_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeFailure(w, http.StatusBadRequest, "malformed user payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[r.PathValue("id")]
	if !ok {
		writeFailure(w, http.StatusNotFound, "user not found")
		return
	}
	u.UserType = in.UserType
	u.UpdatedAt = time.Now()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": u})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if s.requireBackOffice(w, r) == nil {
		return
	}
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeFailure(w, http.StatusNotFound, "user not found")
		return
	}
	delete(s.emails, u.Email)
	delete(s.passwords, u.Email)
	delete(s.users, id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
