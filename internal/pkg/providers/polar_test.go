package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestPolarClient(srv *httptest.Server) *PolarClient {
	return &PolarClient{APIBaseURL: srv.URL, HTTPClient: srv.Client()}
}

func TestPolarFetchRevenueWalksAllPages(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{"items":[
				{"id":"ord_1","status":"paid","amount":1000,"currency":"usd","refunded":false,"created_at":%q},
				{"id":"ord_2","status":"pending","amount":500,"currency":"usd","refunded":false,"created_at":%q}
			],"pagination":{"total_count":3,"max_page":2}}`,
				now.Format(time.RFC3339), now.Format(time.RFC3339))
		case "2":
			fmt.Fprintf(w, `{"items":[
				{"id":"ord_3","status":"paid","amount":2000,"currency":"usd","refunded":true,"created_at":%q}
			],"pagination":{"total_count":3,"max_page":2}}`, now.Format(time.RFC3339))
		default:
			t.Fatalf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	client := newTestPolarClient(srv)
	points, err := client.FetchRevenue(context.Background(), Credentials{APIKey: "polar_key"}, DateRange{End: now}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 2 {
		t.Fatalf("expected both pages fetched, got %d requests", requests)
	}
	// Only ord_1 survives: ord_2 is pending, ord_3 is refunded.
	if len(points) != 1 || points[0].Amount != 10 {
		t.Fatalf("unexpected points: %+v", points)
	}
}

func TestPolarVerifyWebhook(t *testing.T) {
	payload := []byte(`{"type":"order.created"}`)
	secret := "polar_whs"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	client := NewPolarClient()
	creds := Credentials{SecondarySecret: secret}

	if !client.VerifyWebhook(payload, "v1,"+validSig, creds) {
		t.Fatalf("expected prefixed signature to verify")
	}
	if !client.VerifyWebhook(payload, validSig, creds) {
		t.Fatalf("expected bare signature to verify")
	}
	// Multiple space-separated entries from key rotation.
	if !client.VerifyWebhook(payload, "v1,bm9wZQ== v1,"+validSig, creds) {
		t.Fatalf("expected one of several entries to verify")
	}
	if client.VerifyWebhook(payload, "v1,bm9wZQ==", creds) {
		t.Fatalf("expected invalid signature to fail")
	}
}
