// Package openvdm queries the OpenVDM data warehouse for the active cruise
// ID. The lookup is the only network call before filesystem work begins; a
// run aborts when no ID can be obtained.
package openvdm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"r2rpack/internal/config"
)

// ErrNoCruiseID reports that the warehouse did not yield a usable cruise ID.
// Every lookup failure collapses into this error; the underlying cause is
// attached for the log but callers only branch on the sentinel.
var ErrNoCruiseID = errors.New("cruise ID unavailable")

const userAgent = "r2rpack/1.0"

// Client fetches the active cruise ID from OpenVDM.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient builds a lookup client with the configured endpoint and a
// bounded request timeout.
func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.OpenVDM.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.OpenVDM.APIURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// CruiseID performs the warehouse lookup. It returns ErrNoCruiseID (with the
// cause wrapped in) on any network, status, or parse failure.
func (c *Client) CruiseID(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.endpoint) == "" {
		return "", fmt.Errorf("%w: no api_url configured", ErrNoCruiseID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrNoCruiseID, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCruiseID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("%w: warehouse returned %d", ErrNoCruiseID, resp.StatusCode)
	}

	var payload struct {
		CruiseID string `json:"cruiseID"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrNoCruiseID, err)
	}

	id := strings.TrimSpace(payload.CruiseID)
	if id == "" {
		return "", fmt.Errorf("%w: empty cruiseID field", ErrNoCruiseID)
	}
	return id, nil
}
