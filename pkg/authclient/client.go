/**
 * @description
 * This package provides a client for the platform's central authorization
 * service. Capability grants (depositor, issuer, yield executor, emergency
 * operator, platform admin) live in that service; this client answers yes/no
 * capability checks over HTTP and satisfies the accounting engine's authorizer
 * contract.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, time: Standard Go libraries.
 * - github.com/google/uuid: For actor and scope identities.
 */
package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

// Client is a client for the authorization service API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new authorization service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// capabilityResponse is the expected response from the capability check endpoint.
type capabilityResponse struct {
	Data struct {
		Granted bool `json:"granted"`
	} `json:"data"`
}

// HasCapability asks the authorization service whether actor holds capability.
// A non-nil scope restricts the check to grants bound to that vault; a nil
// scope requires a platform-wide grant.
func (c *Client) HasCapability(ctx context.Context, actor uuid.UUID, capability domain.Capability, scope *uuid.UUID) (bool, error) {
	q := url.Values{}
	q.Set("actor", actor.String())
	q.Set("capability", string(capability))
	if scope != nil {
		q.Set("scope", scope.String())
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/api/v1/capabilities/check?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create capability request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-internal-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute capability request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read capability response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=auth_client op=has_capability actor=%s capability=%s status=%d", actor, capability, resp.StatusCode)
		return false, fmt.Errorf("capability check failed (status %d)", resp.StatusCode)
	}

	var parsed capabilityResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return false, fmt.Errorf("failed to decode capability response: %w", err)
	}
	return parsed.Data.Granted, nil
}
