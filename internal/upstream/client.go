// Fetches the remote JSON resources the relay caches
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrBodyTooLarge is returned when the upstream body exceeds the configured limit
	ErrBodyTooLarge = errors.New("response body exceeds the size limit")
	// ErrRedirectNotAllowed is returned when a redirect points at a target the policy rejects
	ErrRedirectNotAllowed = errors.New("redirect target is not allowed")
)

const maxRedirects = 10

// Policy decides which URLs may be requested, including redirect hops
type Policy interface {
	Allowed(targetURL string) bool
}

// Response holds what the relay keeps from an upstream reply
type Response struct {
	StatusCode int
	Body       []byte
}

// Client performs authenticated GET requests against caller-supplied URLs
type Client struct {
	http         *http.Client
	maxBodyBytes int64
}

// NewClient creates a new upstream client. When policy is set every redirect hop is checked against it.
func NewClient(timeout time.Duration, maxBodyBytes int64, policy Policy) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				if policy != nil && !policy.Allowed(req.URL.String()) {
					logrus.Warnf("Refused redirect to %s (blocked by rules)", req.URL.Host)
					return ErrRedirectNotAllowed
				}
				return nil
			},
		},
		maxBodyBytes: maxBodyBytes,
	}
}

// Fetch issues GET apiURL with a bearer token. The body is only read for 200 responses.
func (c *Client) Fetch(ctx context.Context, apiURL, token string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	logrus.Debugf("Upstream %s responded %d", req.URL.Host, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return &Response{StatusCode: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, c.maxBodyBytes)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
