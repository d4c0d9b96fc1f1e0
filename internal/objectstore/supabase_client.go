package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// SupabaseClient is a narrow hand-rolled HTTP client against Supabase
// Storage's REST API, grounded on the corpus's own pkg/supabase wrapper:
// no general-purpose storage SDK is vendored there either, since the
// project talks to Supabase's REST surface directly over net/http.
type SupabaseClient struct {
	baseURL    string // e.g. https://<project>.supabase.co/storage/v1
	serviceKey string
	httpClient *http.Client
}

func NewSupabaseClient(baseURL, serviceKey string) *SupabaseClient {
	return &SupabaseClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{},
	}
}

func (c *SupabaseClient) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.serviceKey,
		"apikey":        c.serviceKey,
	}
}

func (c *SupabaseClient) objectURL(bucket, key string) string {
	return fmt.Sprintf("%s/object/%s/%s", c.baseURL, url.PathEscape(bucket), key)
}

func (c *SupabaseClient) do(ctx context.Context, method, reqURL, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range c.authHeaders() {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.httpClient.Do(req)
}

func (c *SupabaseClient) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	resp, err := c.do(ctx, http.MethodPost, c.objectURL(bucket, key), contentType, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("supabase upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase upload: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *SupabaseClient) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(bucket, key), "", nil)
	if err != nil {
		return nil, fmt.Errorf("supabase download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("supabase download: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *SupabaseClient) Delete(ctx context.Context, bucket, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.objectURL(bucket, key), "", nil)
	if err != nil {
		return fmt.Errorf("supabase delete: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("supabase delete: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *SupabaseClient) Exists(ctx context.Context, bucket, key string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, c.objectURL(bucket, key), "", nil)
	if err != nil {
		return false, fmt.Errorf("supabase exists: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("supabase exists: status %d", resp.StatusCode)
	}
	return true, nil
}

var _ BucketClient = (*SupabaseClient)(nil)
