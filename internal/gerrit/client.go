// Package gerrit is a small client for the Gerrit REST API and the push
// conventions Gerrit expects from git.
package gerrit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/rs/zerolog"
)

// ErrNotFound is matched by errors for HTTP 404 responses.
var ErrNotFound = errors.New("change not found on Gerrit server")

// Error is an HTTP error response served by Gerrit.
type Error struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *Error) Error() string {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound.Error()
	}
	extra := strings.TrimSpace(e.Body)
	if extra != "" {
		extra = ": " + extra
	}
	return fmt.Sprintf("%s%s", e.Status, extra)
}

// Is makes errors.Is(err, ErrNotFound) hold for 404 responses.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to one Gerrit server with HTTP basic auth.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client for the server at baseURL.
func New(baseURL, username, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues an authenticated GET against /a/<path> and decodes the JSON
// response into target, which may be nil.
func (c *Client) Get(ctx context.Context, path string, target any) error {
	return c.do(ctx, http.MethodGet, path, nil, target)
}

// Put issues an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, target any) error {
	return c.do(ctx, http.MethodPut, path, body, target)
}

// GetChange reads change metadata addressed by project, branch and Change-Id.
// A missing change yields an error matching ErrNotFound.
func (c *Client) GetChange(ctx context.Context, project, branch, changeID string, options ...string) (*Change, error) {
	path := "changes/" + FullChangeID(project, branch, changeID)
	if len(options) > 0 {
		q := url.Values{}
		for _, o := range options {
			q.Add("o", o)
		}
		path += "?" + q.Encode()
	}
	var ch Change
	if err := c.Get(ctx, path, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// SetTopic sets the topic of a change.
func (c *Client) SetTopic(ctx context.Context, id, topic string) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	return c.Put(ctx, "changes/"+id+"/topic", map[string]string{"topic": topic}, nil)
}

// FullChangeID returns the unambiguous project~branch~Change-Id identifier.
func FullChangeID(project, branch, changeID string) string {
	return url.PathEscape(project) + "~" + url.PathEscape(branch) + "~" + changeID
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	reqURL := c.baseURL + "/a/" + strings.TrimPrefix(path, "/")
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.username, c.password)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, reqURL, err)
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	c.log.Debug().
		Str("method", method).
		Str("url", reqURL).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("gerrit request")
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{URL: reqURL, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(data)}
	}
	if target == nil {
		return nil
	}
	payload, err := stripXSSI(data)
	if err != nil {
		return fmt.Errorf("%s: %w", reqURL, err)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("%s: malformed json response: %w", reqURL, err)
	}
	return nil
}

// stripXSSI drops the )]}' guard line Gerrit prefixes to JSON responses.
func stripXSSI(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte(")]}'")) {
		return data, nil
	}
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return nil, errors.New("malformed json response - bad header")
	}
	return data[i+1:], nil
}
