package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTP reads datasets from a web server or object store. The version token
// is the ETag, falling back to Last-Modified.
type HTTP struct {
	client  *http.Client
	baseURL string
}

// NewHTTP creates an HTTP source. Refs are appended to baseURL; an empty
// baseURL means refs are absolute URLs. A nil client gets a 60s timeout.
func NewHTTP(client *http.Client, baseURL string) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTP{client: client, baseURL: baseURL}
}

func (h *HTTP) url(ref string) string {
	if h.baseURL == "" {
		return ref
	}
	return strings.TrimRight(h.baseURL, "/") + "/" + strings.TrimLeft(ref, "/")
}

// Version issues a HEAD request.
func (h *HTTP) Version(ctx context.Context, ref string) (string, error) {
	resp, err := h.do(ctx, http.MethodHead, ref)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if etag := resp.Header.Get("ETag"); etag != "" {
		return etag, nil
	}
	return resp.Header.Get("Last-Modified"), nil
}

// Fetch downloads the content with a GET request.
func (h *HTTP) Fetch(ctx context.Context, ref string) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, ref)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("download", ref, err)
	}
	return data, nil
}

func (h *HTTP) do(ctx context.Context, method, ref string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.url(ref), nil)
	if err != nil {
		return nil, unavailable(strings.ToLower(method), ref, err)
	}
	req.Header.Set("User-Agent", "ClientLookup-Loader/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, unavailable(strings.ToLower(method), ref, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, unavailable(strings.ToLower(method), ref, fmt.Errorf("HTTP %s", resp.Status))
	}
	return resp, nil
}
