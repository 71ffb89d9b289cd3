// Package server is the HTTP client for the central judge server. It
// owns the session cookie and transparently re-authenticates once when
// the server rejects a privileged request.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Client struct {
	base     string
	uname    string
	password string
	httpc    *http.Client
	downc    *http.Client
	logger   *slog.Logger

	loginMu sync.Mutex
}

func NewClient(base string, uname string, password string, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		base:     strings.TrimRight(base, "/"),
		uname:    uname,
		password: password,
		// API requests keep redirects visible: a 3xx to /login is how
		// the server signals an expired session cookie
		httpc: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		// file transfers share the jar but follow redirects (links may
		// be signed/redirecting) and have no blanket timeout; the sync
		// engine puts a per-file deadline on the request context
		downc:  &http.Client{Jar: jar},
		logger: logger,
	}, nil
}

// Login performs the credential exchange; the session cookie lands in
// the client's jar.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("uname", c.uname)
	form.Set("password", c.password)
	form.Set("rememberme", "on")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}
	c.logger.Info("logged in to judge server", slog.String("host", c.base))
	return nil
}

// Ensure probes whether the session cookie is still accepted and logs
// in again if it is not. A redirect on the probe endpoint means the
// server wants the client back on the login page.
func (c *Client) Ensure(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/judge/files", nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("credential probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !authRejected(resp) {
		return nil
	}
	return c.Login(ctx)
}

// FileLinks asks the server for download links of exactly the given
// file names. A response without a links object means the problem data
// no longer exists on the server; that is reported as a nil map with a
// nil error and left for the caller to classify.
func (c *Client) FileLinks(ctx context.Context, domainID string, problemID string, names []string) (map[string]string, error) {
	body := struct {
		Pid   string   `json:"pid"`
		Files []string `json:"files"`
	}{Pid: problemID, Files: names}

	endpoint := c.base + "/d/" + url.PathEscape(domainID) + "/judge/files"

	resp, err := c.postJSON(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	if authRejected(resp) {
		resp.Body.Close()
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		resp, err = c.postJSON(ctx, endpoint, body)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("file links request failed with status %d", resp.StatusCode)
	}

	var decoded struct {
		Links map[string]string `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode file links response: %w", err)
	}
	return decoded.Links, nil
}

// Get fetches an arbitrary URL with the session cookie attached. Used
// by the sync engine to download test-data files; redirects are
// followed and the only deadline is the one carried by ctx.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := c.downc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	return resp, nil
}

func authRejected(resp *http.Response) bool {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return true
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		return strings.Contains(loc, "/login")
	}
	return false
}
