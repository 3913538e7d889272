package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPAuthorizer calls the external authorization service over HTTP.
type HTTPAuthorizer struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPAuthorizer creates a client for POST {baseURL}/{audience}.
func NewHTTPAuthorizer(baseURL, token string, timeout time.Duration) *HTTPAuthorizer {
	return &HTTPAuthorizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Authorize implements Authorizer.
func (a *HTTPAuthorizer) Authorize(ctx context.Context, audience string, req Request) ([]string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal authz request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+url.PathEscape(audience), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("authz request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authz status: %d", resp.StatusCode)
	}
	var allowed []string
	if err := json.NewDecoder(resp.Body).Decode(&allowed); err != nil {
		return nil, fmt.Errorf("decode authz response: %w", err)
	}
	return allowed, nil
}
