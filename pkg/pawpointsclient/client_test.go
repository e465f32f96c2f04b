package pawpointsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestDebit_SendsPayloadAndKey(t *testing.T) {
	userID := uuid.New()
	var got pointsPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/pawpoints/debit" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Internal-API-Key") != "secret" {
			t.Fatalf("missing internal api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret")
	if err := client.Debit(context.Background(), userID, 12, "req-1"); err != nil {
		t.Fatalf("Debit returned error: %v", err)
	}
	if got.UserID != userID || got.Points != 12 || got.Reference != "req-1" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestDebit_MapsInsufficientBalance(t *testing.T) {
	for _, status := range []int{http.StatusPaymentRequired, http.StatusConflict} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		err := NewClient(server.URL, "").Debit(context.Background(), uuid.New(), 5, "req")
		server.Close()
		if !errors.Is(err, ErrInsufficientPoints) {
			t.Fatalf("status %d: expected ErrInsufficientPoints, got %v", status, err)
		}
	}
}

func TestRefund_ReturnsErrorOnServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/pawpoints/refund" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := NewClient(server.URL, "").Refund(context.Background(), uuid.New(), 5, "req")
	if err == nil || errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("expected generic failure, got %v", err)
	}
}

func TestDebit_ValidatesInput(t *testing.T) {
	client := NewClient("http://localhost:1", "")
	if err := client.Debit(context.Background(), uuid.Nil, 5, "req"); err == nil {
		t.Fatal("expected error for nil user")
	}
	if err := client.Debit(context.Background(), uuid.New(), 0, "req"); err == nil {
		t.Fatal("expected error for zero points")
	}
	if err := NewClient("", "").Debit(context.Background(), uuid.New(), 5, "req"); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}
