/**
 * @description
 * This package provides a client for the custody provider's API. It encapsulates
 * the logic for making authenticated HTTP requests to move asset units between
 * external accounts and vault custody accounts, handling request body
 * construction and response parsing.
 *
 * The client satisfies the accounting engine's asset mover contract: a transfer
 * either settles at the custody provider or fails, and a failure is reported
 * before any ledger state changes.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 * - github.com/google/uuid: For account identities.
 */
package custodyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

// Client is a client for the custody provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new custody API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BookTransferRequest represents the payload for a custody book transfer.
type BookTransferRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Currency string `json:"currency"`
			Amount   int64  `json:"amount"`
			Reason   string `json:"reason"`
		} `json:"attributes"`
		Relationships struct {
			Account struct {
				Data struct {
					Type string `json:"type"`
					ID   string `json:"id"`
				} `json:"data"`
			} `json:"account"`
			DestinationAccount struct {
				Data struct {
					Type string `json:"type"`
					ID   string `json:"id"`
				} `json:"data"`
			} `json:"destinationAccount"`
		} `json:"relationships"`
	} `json:"data"`
}

// TransferResponse is the expected response from the custody transfer endpoint.
type TransferResponse struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Status string `json:"status"`
		} `json:"attributes"`
	} `json:"data"`
}

// ErrorResponse represents an error from the custody API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("custody api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown custody api error"
}

// BalanceResponse represents the balance response from the custody API.
type BalanceResponse struct {
	Data struct {
		AvailableBalance int64 `json:"availableBalance"`
		LedgerBalance    int64 `json:"ledgerBalance"`
	} `json:"data"`
}

// TransferIn pulls amount from an external account into a vault custody account.
func (c *Client) TransferIn(ctx context.Context, custody, from uuid.UUID, amount int64) error {
	_, err := c.bookTransfer(ctx, from.String(), custody.String(), "financing deposit", amount)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	return nil
}

// TransferOut pushes amount from a vault custody account to an external account.
func (c *Client) TransferOut(ctx context.Context, custody, to uuid.UUID, amount int64) error {
	_, err := c.bookTransfer(ctx, custody.String(), to.String(), "financing payout", amount)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	return nil
}

// bookTransfer executes one internal book transfer between custody accounts.
func (c *Client) bookTransfer(ctx context.Context, sourceAccountID, destAccountID, reason string, amount int64) (*TransferResponse, error) {
	reqPayload := BookTransferRequest{}
	reqPayload.Data.Type = "BookTransfer"
	reqPayload.Data.Attributes.Currency = "USD"
	reqPayload.Data.Attributes.Amount = amount
	reqPayload.Data.Attributes.Reason = reason
	reqPayload.Data.Relationships.Account.Data.Type = "DepositAccount"
	reqPayload.Data.Relationships.Account.Data.ID = sourceAccountID
	reqPayload.Data.Relationships.DestinationAccount.Data.Type = "DepositAccount"
	reqPayload.Data.Relationships.DestinationAccount.Data.ID = destAccountID

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/transfers", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-custody-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute transfer request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transfer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=custody_client op=transfer status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=custody_client op=transfer status=%d title=%q detail=%q", resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		return nil, &errResp
	}

	var successResp TransferResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return nil, fmt.Errorf("failed to decode success response: %w", err)
	}

	return &successResp, nil
}

// GetAccountBalance fetches the balance for a custody account.
func (c *Client) GetAccountBalance(ctx context.Context, accountID string) (*BalanceResponse, error) {
	url := c.BaseURL + "/api/v1/accounts/balance/" + accountID

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create balance request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-custody-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute balance request: %w", err)
	}
	defer resp.Body.Close()
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=custody_client op=get_balance account_id=%s status=%d msg=\"non-2xx response (unparsable error body)\"", accountID, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=custody_client op=get_balance account_id=%s status=%d title=%q detail=%q", accountID, resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		return nil, &errResp
	}

	var balanceResp BalanceResponse
	if err := json.Unmarshal(bodyBytes, &balanceResp); err != nil {
		return nil, fmt.Errorf("failed to decode balance response: %w", err)
	}

	return &balanceResp, nil
}

func firstErrorTitle(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Title
}

func firstErrorDetail(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Detail
}
