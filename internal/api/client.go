package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/blackwell-systems/pomoblock/internal/blocker"
	"github.com/blackwell-systems/pomoblock/internal/store"
)

// ErrDaemonNotRunning is returned when nothing listens on the API address.
var ErrDaemonNotRunning = errors.New("pomoblock daemon is not running (start it with 'pomoblock serve --daemon')")

// Client talks to a running daemon.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client for addr, a unix socket path or host:port.
func NewClient(addr string) *Client {
	if IsUnixAddr(addr) {
		path := unixPath(addr)
		transport := &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		}
		return &Client{base: "http://pomoblock", http: &http.Client{Transport: transport}}
	}
	return &Client{base: "http://" + addr, http: &http.Client{}}
}

// newClientWithBase is used by tests against httptest servers.
func newClientWithBase(base string, hc *http.Client) *Client {
	return &Client{base: base, http: hc}
}

// Start asks the daemon to block domains.
func (c *Client) Start(ctx context.Context, domains []string) (blocker.Result, error) {
	var res blocker.Result
	err := c.do(ctx, http.MethodPost, "/v1/blocking/start", DomainsRequest{Domains: domains}, &res)
	return res, err
}

// Stop asks the daemon to restore the hosts file.
func (c *Client) Stop(ctx context.Context) (blocker.Result, error) {
	var res blocker.Result
	err := c.do(ctx, http.MethodPost, "/v1/blocking/stop", nil, &res)
	return res, err
}

// Status returns the daemon's blocking state.
func (c *Client) Status(ctx context.Context) (blocker.Status, error) {
	var st blocker.Status
	err := c.do(ctx, http.MethodGet, "/v1/blocking/status", nil, &st)
	return st, err
}

// ForceClean asks the daemon to reset the hosts file to defaults.
func (c *Client) ForceClean(ctx context.Context) (blocker.Result, error) {
	var res blocker.Result
	err := c.do(ctx, http.MethodPost, "/v1/hosts/force-clean", nil, &res)
	return res, err
}

// CheckAdmin asks the daemon whether it can change the hosts file.
func (c *Client) CheckAdmin(ctx context.Context) (blocker.AdminCheck, error) {
	var res blocker.AdminCheck
	err := c.do(ctx, http.MethodGet, "/v1/admin", nil, &res)
	return res, err
}

// Blocklist returns the saved blocklist.
func (c *Client) Blocklist(ctx context.Context) ([]string, error) {
	var res BlocklistResponse
	err := c.do(ctx, http.MethodGet, "/v1/blocklist", nil, &res)
	return res.Domains, err
}

// SetBlocklist replaces the saved blocklist and returns it normalized.
func (c *Client) SetBlocklist(ctx context.Context, domains []string) ([]string, error) {
	var res BlocklistResponse
	err := c.do(ctx, http.MethodPut, "/v1/blocklist", DomainsRequest{Domains: domains}, &res)
	return res.Domains, err
}

// ResetBlocklist restores the default blocklist.
func (c *Client) ResetBlocklist(ctx context.Context) ([]string, error) {
	var res BlocklistResponse
	err := c.do(ctx, http.MethodDelete, "/v1/blocklist", nil, &res)
	return res.Domains, err
}

// History returns up to limit recent events.
func (c *Client) History(ctx context.Context, limit int) ([]*store.Event, error) {
	var res HistoryResponse
	path := "/v1/history?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res.Events, err
}

// Shutdown asks the daemon to remove any block and exit.
func (c *Client) Shutdown(ctx context.Context) error {
	var res blocker.Result
	return c.do(ctx, http.MethodPost, "/v1/shutdown", nil, &res)
}

// do sends the request and decodes the response into out. Result bodies are
// decoded whatever the status, so callers see the structured failure.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return ErrDaemonNotRunning
		}
		return fmt.Errorf("request to daemon failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read daemon response: %w", err)
	}

	if resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("invalid daemon response: %w", err)
		}
		return nil
	}

	if res, ok := out.(*blocker.Result); ok {
		if err := json.Unmarshal(data, res); err == nil && res.Error != "" {
			return nil
		}
	}

	var apiErr ErrorResponse
	if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.Message == "" {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	return fmt.Errorf("daemon: %s", apiErr.Message)
}
