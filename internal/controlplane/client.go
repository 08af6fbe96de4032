// ABOUTME: Typed HTTP client for the Tendril control-plane API
// ABOUTME: Wraps the agent listing and remote-execution endpoints with timeouts and bearer auth

package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/tendril-collect/internal/auth"
	"github.com/2389/tendril-collect/internal/config"
)

// ErrDirectoryUnavailable indicates the agent inventory could not be
// fetched or decoded. A partial directory is never acceptable, so callers
// must treat this as fatal before dispatching any work.
var ErrDirectoryUnavailable = errors.New("agent directory unavailable")

// directoryTimeout bounds the one-shot inventory request. Listing is a
// cheap metadata call; anything slower means the control plane is down.
const directoryTimeout = 10 * time.Second

// Agent is one entry in the control plane's inventory.
type Agent struct {
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
}

// StatusConnected is the inventory status of a reachable agent.
const StatusConnected = "connected"

// ExecuteRequest asks the control plane to run a script on one agent.
// Timeout is the agent-side script deadline in seconds.
type ExecuteRequest struct {
	Agent   string `json:"agent"`
	Script  string `json:"script"`
	Timeout int    `json:"timeout"`
}

// ExecuteResponse carries the captured outcome of a remote execution.
type ExecuteResponse struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Client talks to one Tendril control plane. Safe for concurrent use.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         *auth.TokenSource
	scriptTimeout  time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

// New creates a control-plane client from the loaded configuration.
// tokens may be nil for an unauthenticated control plane.
func New(cfg config.ControlPlaneConfig, tokens *auth.TokenSource) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.APIBase, "/"),
		http:           &http.Client{},
		tokens:         tokens,
		scriptTimeout:  cfg.ScriptTimeout,
		requestTimeout: cfg.RequestTimeout,
		logger:         slog.Default().With("component", "controlplane"),
	}
}

// ScriptTimeout reports the agent-side script deadline this client sends.
func (c *Client) ScriptTimeout() time.Duration {
	return c.scriptTimeout
}

// ListAgents fetches the current agent inventory.
// Returns ErrDirectoryUnavailable (wrapped) on any transport or decode failure.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, directoryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/agents", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrDirectoryUnavailable, err)
	}
	if err := c.authorize(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: listing returned HTTP %d", ErrDirectoryUnavailable, resp.StatusCode)
	}

	var body struct {
		Agents []Agent `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding listing: %v", ErrDirectoryUnavailable, err)
	}

	c.logger.Debug("fetched agent inventory", "count", len(body.Agents))
	return body.Agents, nil
}

// Execute runs the script on the named agent and returns the captured
// outcome. The HTTP round trip is bounded by the request timeout, which
// exceeds the script timeout carried in the request body so a slow agent
// reports its own result instead of tripping the transport deadline.
func (c *Client) Execute(ctx context.Context, hostname, script string) (*ExecuteResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	payload, err := json.Marshal(ExecuteRequest{
		Agent:   hostname,
		Script:  script,
		Timeout: int(c.scriptTimeout.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(req); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing on %s: %w", hostname, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the error line; the control plane
		// returns plain-text errors on non-200.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("executing on %s: HTTP %d: %s", hostname, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out ExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding execute response for %s: %w", hostname, err)
	}

	return &out, nil
}

// authorize attaches a bearer token when a token source is configured.
func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}

	token, err := c.tokens.Token()
	if err != nil {
		if errors.Is(err, auth.ErrNoSecret) {
			return nil
		}
		return fmt.Errorf("minting token: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
