package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/grimsurvivors/potdhub/config"
)

// Command is one pending command fetched from the hub.
type Command struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client talks to the hub's bridge endpoints with the shared bearer key.
// All calls carry a bounded timeout; a failed call is the caller's problem
// to log and move past, never to block on.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a Client from the bridge config.
func NewClient(cfg config.BridgeConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// PushAuth forwards an AUTH event to the hub.
func (c *Client) PushAuth(ctx context.Context, ev *AuthEvent) error {
	return c.post(ctx, "/api/pz/add-code", ev, nil)
}

// PushStats forwards a STATS event to the hub.
func (c *Client) PushStats(ctx context.Context, ev *StatsEvent) error {
	return c.post(ctx, "/api/pz/update-stats", ev, nil)
}

// FetchPending returns the hub's unprocessed commands, oldest first.
func (c *Client) FetchPending(ctx context.Context) ([]Command, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/pz/pending-commands", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge: fetch pending: status %d", resp.StatusCode)
	}

	var commands []Command
	if err := json.NewDecoder(resp.Body).Decode(&commands); err != nil {
		return nil, err
	}
	return commands, nil
}

// Acknowledge reports the given command ids as written to the input file.
func (c *Client) Acknowledge(ctx context.Context, ids []int64) error {
	return c.post(ctx, "/api/pz/pending-commands", map[string][]int64{"commandIds": ids}, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge: %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
