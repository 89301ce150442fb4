/**
 * @description
 * This package provides a client for the external value-transfer ledger that the
 * policy-service moves funds through. The ledger is a token-like account ledger
 * with balance, allowance, and transfer-from-allowance semantics: parties
 * pre-authorize the service's custodial account to move funds on their behalf,
 * and the service spends that allowance when collecting premiums or pre-funding
 * payouts.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Error codes the ledger reports on rejected transfers.
const (
	CodeInsufficientFunds     = "insufficient_funds"
	CodeInsufficientAllowance = "insufficient_allowance"
)

// Client is a client for the ledger API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new ledger API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TransferRequest is the payload for a direct transfer out of an account the
// caller controls (for this service, the custodial escrow account).
type TransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

// TransferFromRequest is the payload for an allowance-based transfer: the
// ledger debits `owner` using the allowance `owner` granted to the caller.
type TransferFromRequest struct {
	Owner  string `json:"owner"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

// TransferResponse is the expected response from the ledger's transfer endpoints.
type TransferResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// BalanceResponse represents the balance response from the ledger API.
type BalanceResponse struct {
	Data struct {
		Account string `json:"account"`
		Balance int64  `json:"balance"`
	} `json:"data"`
}

// ErrorResponse represents an error from the ledger API.
type ErrorResponse struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("ledger api error: %s - %s", e.Errors[0].Code, e.Errors[0].Detail)
	}
	return "unknown ledger api error"
}

// Code returns the machine-readable code of the first reported error.
func (e *ErrorResponse) Code() string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Code
	}
	return ""
}

// Transfer moves funds out of an account the caller's API key controls.
func (c *Client) Transfer(ctx context.Context, from, to string, amount int64, memo string) error {
	payload := TransferRequest{From: from, To: to, Amount: amount, Memo: memo}
	return c.doTransfer(ctx, "/api/v1/transfers", payload)
}

// TransferFrom spends the allowance `owner` granted to the caller, moving funds
// from `owner` directly to `to`.
func (c *Client) TransferFrom(ctx context.Context, owner, to string, amount int64, memo string) error {
	payload := TransferFromRequest{Owner: owner, To: to, Amount: amount, Memo: memo}
	return c.doTransfer(ctx, "/api/v1/transfers/from-allowance", payload)
}

// doTransfer is a generic helper to execute transfer requests.
func (c *Client) doTransfer(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create transfer request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ledger-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute transfer request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read transfer response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=ledger_client op=transfer status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return fmt.Errorf("ledger transfer failed (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=ledger_client op=transfer status=%d code=%q detail=%q", resp.StatusCode, errResp.Code(), firstErrorDetail(errResp))
		return &errResp
	}

	var successResp TransferResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return fmt.Errorf("failed to decode success response: %w", err)
	}
	return nil
}

// BalanceOf fetches the balance for a specific account from the ledger API.
func (c *Client) BalanceOf(ctx context.Context, account string) (int64, error) {
	url := c.BaseURL + "/api/v1/accounts/" + account + "/balance"

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create balance request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ledger-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute balance request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return 0, fmt.Errorf("ledger balance lookup failed (status %d)", resp.StatusCode)
		}
		return 0, &errResp
	}

	var balanceResp BalanceResponse
	if err := json.Unmarshal(bodyBytes, &balanceResp); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}
	return balanceResp.Data.Balance, nil
}

func firstErrorDetail(errResp ErrorResponse) string {
	if len(errResp.Errors) > 0 {
		return errResp.Errors[0].Detail
	}
	return ""
}
