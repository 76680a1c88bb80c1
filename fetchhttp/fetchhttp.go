// Package fetchhttp implements the profile-store and attachment-store
// contracts over HTTP. Failures are classified by status code, never by
// matching substrings of error text: 401/403 => unauthorized, 404 =>
// not found, 408/429/5xx => transient server error, anything else that
// cannot be decoded => malformed.
package fetchhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/medrec-labs/profilecache"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	// BaseURL of the profile store, e.g. "https://api.clinic.example".
	BaseURL string
	// HTTPClient overrides the default client (custom transport, proxy).
	HTTPClient *http.Client
	// Timeout bounds a single profile fetch; 0 => 15s. The attachment
	// deadline is enforced by the resolver, not here.
	Timeout time.Duration
	// Token, when set, is called per request for a bearer token.
	Token func() string
}

type Client struct {
	base    *url.URL
	hc      *http.Client
	timeout time.Duration
	token   func() string
}

var (
	_ profilecache.ProfileFetcher    = (*Client)(nil)
	_ profilecache.AttachmentFetcher = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("fetchhttp: base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fetchhttp: parse base URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{base: base, hc: hc, timeout: timeout, token: cfg.Token}, nil
}

// Fetch requests the profile with every available identifier attached,
// so a stale patient ID does not doom a lookup the store could have
// matched by user ID or email.
func (c *Client) Fetch(ctx context.Context, ids profilecache.IdentifierSet) (profilecache.RawProfile, error) {
	if ids.Empty() {
		return profilecache.RawProfile{}, profilecache.ErrNoIdentifiers
	}

	q := url.Values{}
	if ids.PatientID != "" {
		q.Set("patient_id", ids.PatientID)
	}
	if ids.UserID != "" {
		q.Set("user_id", ids.UserID)
	}
	if ids.Email != "" {
		q.Set("email", ids.Email)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, status, err := c.do(ctx, c.endpoint("/api/patients/profile/", q))
	if err != nil {
		return profilecache.RawProfile{}, err
	}
	if kerr := classify(status); kerr != nil {
		return profilecache.RawProfile{}, kerr
	}

	var raw profilecache.RawProfile
	if err := json.Unmarshal(body, &raw); err != nil {
		return profilecache.RawProfile{}, &profilecache.FetchError{
			Kind: profilecache.FetchMalformed, Status: status, Err: err,
		}
	}
	return raw, nil
}

// FetchPhoto resolves the photo URL for a patient. A 404 or an empty
// photo_url is a confirmed "no attachment", not an error.
func (c *Client) FetchPhoto(ctx context.Context, patientID string) (string, bool, error) {
	body, status, err := c.do(ctx, c.endpoint("/api/patients/"+url.PathEscape(patientID)+"/photo/", nil))
	if err != nil {
		return "", false, err
	}
	if status == http.StatusNotFound || status == http.StatusNoContent {
		return "", false, nil
	}
	if kerr := classify(status); kerr != nil {
		return "", false, kerr
	}

	var resp struct {
		PhotoURL string `json:"photo_url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false, &profilecache.FetchError{
			Kind: profilecache.FetchMalformed, Status: status, Err: err,
		}
	}
	if resp.PhotoURL == "" {
		return "", false, nil
	}
	return resp.PhotoURL, true, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path, _ = url.JoinPath(u.Path, path)
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, &profilecache.FetchError{Kind: profilecache.FetchMalformed, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if t := c.token(); t != "" {
			req.Header.Set("Authorization", "Bearer "+t)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		// Transport failures and deadline expiry are transient.
		return nil, 0, &profilecache.FetchError{Kind: profilecache.FetchServerError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, &profilecache.FetchError{
			Kind: profilecache.FetchServerError, Status: resp.StatusCode, Err: err,
		}
	}
	return body, resp.StatusCode, nil
}

// classify maps a non-2xx status to the fetch error taxonomy. Returns
// nil for 2xx.
func classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &profilecache.FetchError{Kind: profilecache.FetchUnauthorized, Status: status}
	case status == http.StatusNotFound:
		return &profilecache.FetchError{Kind: profilecache.FetchNotFound, Status: status}
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return &profilecache.FetchError{Kind: profilecache.FetchServerError, Status: status}
	default:
		return &profilecache.FetchError{Kind: profilecache.FetchMalformed, Status: status}
	}
}
