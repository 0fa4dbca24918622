package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestPayPalClient(srv *httptest.Server) *PayPalClient {
	return &PayPalClient{APIBaseURL: srv.URL, HTTPClient: srv.Client()}
}

func paypalTokenHandler(t *testing.T, w http.ResponseWriter, r *http.Request) {
	t.Helper()
	user, pass, ok := r.BasicAuth()
	if !ok || user != "client" || pass != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	fmt.Fprint(w, `{"access_token":"tok_123","expires_in":3600}`)
}

func TestPayPalValidateCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/oauth2/token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		paypalTokenHandler(t, w, r)
	}))
	defer srv.Close()

	client := newTestPayPalClient(srv)
	if err := client.ValidateCredentials(context.Background(), Credentials{APIKey: "client:secret"}); err != nil {
		t.Fatalf("expected valid credentials to pass: %v", err)
	}

	err := client.ValidateCredentials(context.Background(), Credentials{APIKey: "client:wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// Missing separator never reaches the network.
	err = client.ValidateCredentials(context.Background(), Credentials{APIKey: "just-a-key"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected malformed key to fail fast, got %v", err)
	}
}

func TestPayPalFetchRevenueChunksWideRanges(t *testing.T) {
	end := time.Now().UTC().Truncate(time.Second)
	start := end.Add(-90 * 24 * time.Hour)

	var windows []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			paypalTokenHandler(t, w, r)
		case "/v1/reporting/transactions":
			if r.Header.Get("Authorization") != "Bearer tok_123" {
				t.Fatalf("missing bearer token")
			}
			from, _ := time.Parse(time.RFC3339, r.URL.Query().Get("start_date"))
			to, _ := time.Parse(time.RFC3339, r.URL.Query().Get("end_date"))
			if to.Sub(from) > paypalMaxWindow {
				t.Fatalf("window %s exceeds 31 days", to.Sub(from))
			}
			windows = append(windows, r.URL.Query().Get("start_date"))
			fmt.Fprintf(w, `{"total_pages":1,"transaction_details":[
				{"transaction_info":{"transaction_id":"t1","transaction_event_code":"T0002","transaction_status":"S",
					"transaction_amount":{"currency_code":"USD","value":"25.00"},
					"transaction_initiation_date":%q},
				 "payer_info":{"email_address":"a@example.com"}},
				{"transaction_info":{"transaction_id":"t2","transaction_event_code":"T1107","transaction_status":"S",
					"transaction_amount":{"currency_code":"USD","value":"-25.00"},
					"transaction_initiation_date":%q},
				 "payer_info":{"email_address":"b@example.com"}}
			]}`, from.Format(time.RFC3339), from.Format(time.RFC3339))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestPayPalClient(srv)
	points, err := client.FetchRevenue(context.Background(), Credentials{APIKey: "client:secret"}, DateRange{Start: start, End: end}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 90 days walks in three 31-day chunks.
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d (%v)", len(windows), windows)
	}
	// The refund (negative value) is dropped from every chunk.
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Amount != 25 {
		t.Fatalf("unexpected amount %v", points[0].Amount)
	}
}

func TestPayPalVerifyWebhook(t *testing.T) {
	payload := []byte(`{"event_type":"PAYMENT.SALE.COMPLETED"}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			paypalTokenHandler(t, w, r)
		case "/v1/notifications/verify-webhook-signature":
			var req map[string]json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("bad verification body: %v", err)
			}
			if string(req["webhook_id"]) != `"wh_1"` {
				t.Fatalf("unexpected webhook_id %s", req["webhook_id"])
			}
			if string(req["transmission_sig"]) == `"good-sig"` {
				fmt.Fprint(w, `{"verification_status":"SUCCESS"}`)
			} else {
				fmt.Fprint(w, `{"verification_status":"FAILURE"}`)
			}
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestPayPalClient(srv)
	creds := Credentials{APIKey: "client:secret", SecondarySecret: "wh_1"}

	goodHeaders := `{"transmission_id":"tx1","transmission_time":"2026-01-01T00:00:00Z","transmission_sig":"good-sig","cert_url":"https://api.paypal.com/cert","auth_algo":"SHA256withRSA"}`
	if !client.VerifyWebhook(payload, goodHeaders, creds) {
		t.Fatalf("expected SUCCESS verification to pass")
	}

	badHeaders := `{"transmission_id":"tx1","transmission_time":"2026-01-01T00:00:00Z","transmission_sig":"bad-sig","cert_url":"https://api.paypal.com/cert","auth_algo":"SHA256withRSA"}`
	if client.VerifyWebhook(payload, badHeaders, creds) {
		t.Fatalf("expected FAILURE verification to fail")
	}

	if client.VerifyWebhook(payload, "{not json", creds) {
		t.Fatalf("expected malformed headers to fail")
	}
	if client.VerifyWebhook(payload, goodHeaders, Credentials{APIKey: "client:secret"}) {
		t.Fatalf("expected missing webhook id to fail")
	}
}
