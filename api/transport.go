package api

import (
	"net/http"

	estate "github.com/homequest/estate-go"
)

// bearerTransport is the request-phase interceptor shared by both channels.
// It attaches the stored bearer token to every outbound request; requests
// that already carry an Authorization header (a replay pinned to a freshly
// refreshed token) pass through untouched. Attached at construction, so no
// call can bypass it and there is no registration step to repeat.
type bearerTransport struct {
	store estate.CredentialStore
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" {
		if token, ok := t.store.Get(); ok {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return t.next.RoundTrip(req)
}
