// Package client talks to a filegrab server and runs client-side download
// sessions on top of it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/iconidentify/filegrab/internal/domain"
)

// Client calls the filegrab HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. A nil httpClient uses
// one without an overall timeout so long downloads are not cut off;
// bound individual calls with the context instead.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// APIError is an error answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Transfer is a download being streamed from the server.
type Transfer struct {
	Body        io.ReadCloser
	FileName    string
	ContentType string
	Size        int64 // -1 when unknown
	Note        string
}

// Close closes the transfer body.
func (t *Transfer) Close() error {
	return t.Body.Close()
}

// FileInfo asks the server for metadata about rawURL.
func (c *Client) FileInfo(ctx context.Context, rawURL string) (*domain.FileInfo, error) {
	var info domain.FileInfo
	path := "/api/file-info?url=" + url.QueryEscape(rawURL)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Download asks the server to relay rawURL in the given format. The
// caller must close the returned Transfer.
func (c *Client) Download(ctx context.Context, rawURL, format string) (*Transfer, error) {
	body, err := json.Marshal(map[string]string{"url": rawURL, "format": format})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/download", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}

	return &Transfer{
		Body:        resp.Body,
		FileName:    attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Note:        resp.Header.Get("X-Format-Note"),
	}, nil
}

// Ready returns the resolvers the server reports as available.
func (c *Client) Ready(ctx context.Context) ([]string, error) {
	var resp struct {
		Status    string   `json:"status"`
		Resolvers []string `json:"resolvers"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/ready", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Resolvers, nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, result interface{}) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	msg := strings.TrimSpace(string(respBody))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// attachmentName returns the file name of a Content-Disposition header,
// or "" when it has none.
func attachmentName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// sizeOf returns the size of t, falling back to the looked up size.
func sizeOf(t *Transfer, fallback int64) int64 {
	if t.Size >= 0 {
		return t.Size
	}
	if fallback > 0 {
		return fallback
	}
	return -1
}
