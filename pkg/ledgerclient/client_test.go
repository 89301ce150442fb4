package ledgerclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTransfer_SendsRequestAndAPIKey(t *testing.T) {
	var gotPath, gotKey string
	var gotBody TransferRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-ledger-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"tr_1","status":"completed"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	if err := client.Transfer(context.Background(), "acct_escrow", "acct_buyer", 50, "payout"); err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}

	if gotPath != "/api/v1/transfers" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("unexpected api key %q", gotKey)
	}
	if gotBody.From != "acct_escrow" || gotBody.To != "acct_buyer" || gotBody.Amount != 50 {
		t.Fatalf("unexpected payload %+v", gotBody)
	}
}

func TestTransferFrom_UsesAllowanceEndpoint(t *testing.T) {
	var gotPath string
	var gotBody TransferFromRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"tr_2","status":"completed"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	if err := client.TransferFrom(context.Background(), "acct_buyer", "acct_seller", 5, "premium"); err != nil {
		t.Fatalf("TransferFrom returned error: %v", err)
	}

	if gotPath != "/api/v1/transfers/from-allowance" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody.Owner != "acct_buyer" || gotBody.To != "acct_seller" || gotBody.Amount != 5 {
		t.Fatalf("unexpected payload %+v", gotBody)
	}
}

func TestTransfer_RejectionSurfacesErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"code":"insufficient_allowance","detail":"allowance too small","status":"422"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	err := client.TransferFrom(context.Background(), "acct_buyer", "acct_seller", 5, "premium")
	if err == nil {
		t.Fatal("expected error on rejected transfer")
	}

	var apiErr *ErrorResponse
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *ErrorResponse, got %T", err)
	}
	if apiErr.Code() != CodeInsufficientAllowance {
		t.Fatalf("expected code %q, got %q", CodeInsufficientAllowance, apiErr.Code())
	}
}

func TestTransfer_UnparsableErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream timeout"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	err := client.Transfer(context.Background(), "acct_escrow", "acct_buyer", 50, "payout")
	if err == nil {
		t.Fatal("expected error on non-2xx response")
	}
	var apiErr *ErrorResponse
	if errors.As(err, &apiErr) {
		t.Fatalf("expected a plain error for an unparsable body, got %v", apiErr)
	}
}

func TestBalanceOf(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/acct_escrow/balance" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"account":"acct_escrow","balance":150}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	balance, err := client.BalanceOf(context.Background(), "acct_escrow")
	if err != nil {
		t.Fatalf("BalanceOf returned error: %v", err)
	}
	if balance != 150 {
		t.Fatalf("expected balance 150, got %d", balance)
	}
}
