package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxBodySize caps how much of the response is read. A tags page is a few
// kilobytes; anything much larger is not a tags response.
const maxBodySize = 4 << 20

// tagsResponse is the part of the registry response the resolver reads.
type tagsResponse struct {
	Results []struct {
		Name        string `json:"name"`
		LastUpdated string `json:"last_updated"`
	} `json:"results"`
}

// Error reports a failed tag lookup. Op names the step that failed
// ("request", "status", "decode", "empty") so callers can log it.
type Error struct {
	URL string
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("registry %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Resolver resolves the latest tag from a tags endpoint.
type Resolver struct {
	url    string
	client *http.Client
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.client = c
	}
}

// WithTimeout sets the timeout of the default HTTP client. It has no effect
// when combined with WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.client = &http.Client{Timeout: d}
		}
	}
}

// NewResolver creates a Resolver for the given tags endpoint.
func NewResolver(url string, opts ...Option) *Resolver {
	r := &Resolver{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LatestTag returns the name of the first entry in the registry's results.
// It never returns an empty tag without an error.
func (r *Resolver) LatestTag(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", &Error{URL: r.url, Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	log.WithField("url", r.url).Debug("looking up latest engine tag")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &Error{URL: r.url, Op: "request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{URL: r.url, Op: "status", Err: fmt.Errorf("unexpected HTTP status %s", resp.Status)}
	}

	var body tagsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return "", &Error{URL: r.url, Op: "decode", Err: err}
	}

	if len(body.Results) == 0 {
		return "", &Error{URL: r.url, Op: "empty", Err: fmt.Errorf("no tags in response")}
	}
	latest := body.Results[0]
	if latest.Name == "" {
		return "", &Error{URL: r.url, Op: "empty", Err: fmt.Errorf("first tag has no name")}
	}

	log.WithFields(log.Fields{
		"tag":         latest.Name,
		"lastUpdated": latest.LastUpdated,
	}).Debug("resolved latest engine tag")

	return latest.Name, nil
}
