package fake

import (
	estate "github.com/homequest/estate-go"
	"github.com/homequest/estate-go/api"
	"github.com/homequest/estate-go/credstore"
	"github.com/homequest/estate-go/marketplace"
	"github.com/homequest/estate-go/session"
)

// NewClient wires a complete *estate.Client against a fresh fake server:
// in-memory credential store, session manager, both API channels with their
// interceptors, and all marketplace services. The caller owns the server and
// must Close it.
func NewClient(opts ...Option) (*estate.Client, *Server) {
	srv := NewServer(opts...)

	cfg := estate.Config{BaseURL: srv.URL()}
	store := credstore.NewMemory()
	sess := session.New(cfg, store)

	jsonCh := api.NewJSON(srv.URL(), store, api.WithRetry(sess, nil))
	uploadCh := api.NewUpload(srv.URL(), store)

	client, err := estate.NewClient(cfg,
		estate.WithCredentialStore(store),
		estate.WithSessionService(sess),
		estate.WithPropertyService(marketplace.NewProperties(jsonCh, uploadCh)),
		estate.WithTourRequestService(marketplace.NewTourRequests(jsonCh)),
		estate.WithReviewService(marketplace.NewReviews(jsonCh)),
		estate.WithAdminUserService(marketplace.NewAdminUsers(jsonCh)),
	)
	if err != nil {
		// Unreachable: the server URL is never empty.
		panic(err)
	}
	return client, srv
}
