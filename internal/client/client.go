// Package client talks to a running mnemo server over its HTTP API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 5 * time.Second
)

// Client talks to the mnemo server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty URL falls back to MNEMO_URL,
// then to http://127.0.0.1:37778.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("MNEMO_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// URL returns the server base URL.
func (c *Client) URL() string { return c.serverURL }

// Post sends a POST request with a JSON body. Returns the response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return readBody("POST", path, resp)
}

// Get sends a GET request. Returns the response body.
func (c *Client) Get(path string) ([]byte, error) {
	resp, err := c.http.Get(c.serverURL + path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return readBody("GET", path, resp)
}

func readBody(method, path string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

// Health is the server's health report.
type Health struct {
	Status          string  `json:"status"`
	Version         string  `json:"version"`
	Uptime          float64 `json:"uptime"`
	DB              bool    `json:"db"`
	DBPath          string  `json:"db_path"`
	NextMaintenance string  `json:"next_maintenance,omitempty"`
}

// Health fetches /api/health.
func (c *Client) Health() (*Health, error) {
	data, err := c.Get("/api/health")
	if err != nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &h, nil
}

// Maintain asks the server to run a maintenance pass now, under the
// server's own write lock. With repair, dangling relations are removed first.
func (c *Client) Maintain(repair bool) (json.RawMessage, error) {
	path := "/api/maintenance"
	if repair {
		path += "?repair=true"
	}
	data, err := c.Post(path, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
