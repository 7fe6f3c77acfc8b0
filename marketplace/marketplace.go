// Package marketplace provides typed services over the API channels:
// property listings, tour requests, reviews, and back-office user management.
//
// Each service validates its inputs, passes payloads through to the remote
// API, and fails closed on envelopes whose success flag is not explicitly
// true. 401 recovery and credential attachment happen in the channels; the
// services never see them.
package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/homequest/estate-go/api"

	estate "github.com/homequest/estate-go"
)

// Backend is the JSON-channel contract the services call through.
// Implemented by api.Channel.
type Backend interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// Uploader is the multipart-channel contract. Implemented by api.Channel.
type Uploader interface {
	PostMultipart(ctx context.Context, path, contentType string, body []byte, out any) error
}

// envelopeErr converts a delivered-but-negative envelope into an error.
// A missing success flag counts as failure.
func envelopeErr(env api.Envelope) error {
	if env.Success {
		return nil
	}
	msg := env.Message
	if msg == "" {
		msg = estate.GenericErrorMessage
	}
	return &estate.APIError{StatusCode: http.StatusOK, Message: msg}
}

func listQuery(opts estate.ListOptions) url.Values {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	return q
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func pathEscape(id string) string {
	return url.PathEscape(id)
}

func wrap(service string, err error) error {
	return fmt.Errorf("estate/%s: %w", service, err)
}
