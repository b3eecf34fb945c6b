// Package upload talks to the file endpoint that stores attachments and
// returns the URL they can be fetched from.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FilenameHeader carries the original filename alongside the raw body.
const FilenameHeader = "X-Filename"

// requestTimeout bounds a whole upload when the caller sets no deadline.
const requestTimeout = 2 * time.Minute

// ErrNoURL is returned when the endpoint answers without a url.
var ErrNoURL = errors.New("upload: response has no url")

// Response is the JSON body returned by the upload endpoint.
type Response struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Client uploads files with a single POST per file.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a Client for the endpoint URL (for example
// http://localhost:9000/upload). A nil httpClient uses a client with a
// default timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// Upload sends body as the request payload and returns the URL of the
// stored file. Failures are not retried.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set(FilenameHeader, filename)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload: unexpected status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("upload: decode response: %w", err)
	}
	if out.URL == "" {
		return "", ErrNoURL
	}
	return out.URL, nil
}
