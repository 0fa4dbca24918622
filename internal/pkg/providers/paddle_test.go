package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestPaddleClient(srv *httptest.Server) *PaddleClient {
	return &PaddleClient{APIBaseURL: srv.URL, HTTPClient: srv.Client()}
}

func TestPaddleFetchRevenueFollowsCursor(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	var requests int

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/transactions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("after") == "" {
			fmt.Fprintf(w, `{"data":[
				{"id":"txn_1","status":"completed","currency_code":"USD","billed_at":%q,"details":{"totals":{"total":"4999"}}}
			],"meta":{"pagination":{"has_more":true,"next":%q}}}`,
				now.Format(time.RFC3339), srv.URL+"/transactions?after=txn_1")
			return
		}
		fmt.Fprintf(w, `{"data":[
			{"id":"txn_2","status":"completed","currency_code":"USD","billed_at":%q,"details":{"totals":{"total":"1500"}}}
		],"meta":{"pagination":{"has_more":false,"next":""}}}`,
			now.Add(-time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	client := newTestPaddleClient(srv)
	rng := DateRange{Start: now.Add(-48 * time.Hour), End: now}
	points, err := client.FetchRevenue(context.Background(), Credentials{APIKey: "pdl_key"}, rng, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 2 {
		t.Fatalf("expected 2 requests, got %d", requests)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Amount != 49.99 || points[1].Amount != 15.00 {
		t.Fatalf("unexpected amounts: %v %v", points[0].Amount, points[1].Amount)
	}
}

func TestPaddleFetchCurrentMetricsQuantityAndCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subscriptions":
			fmt.Fprint(w, `{"data":[
				{"id":"sub_1","customer_id":"ctm_a","items":[
					{"quantity":3,"price":{"unit_price":{"amount":"1000","currency_code":"USD"},"billing_cycle":{"interval":"month","frequency":1}}}
				]},
				{"id":"sub_2","customer_id":"ctm_b","items":[
					{"quantity":1,"price":{"unit_price":{"amount":"12000","currency_code":"USD"},"billing_cycle":{"interval":"year","frequency":1}}}
				]}
			],"meta":{"pagination":{"has_more":false,"next":""}}}`)
		case "/transactions":
			fmt.Fprint(w, `{"data":[],"meta":{"pagination":{"has_more":false,"next":""}}}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestPaddleClient(srv)
	metrics, err := client.FetchCurrentMetrics(context.Background(), Credentials{APIKey: "pdl_key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3 seats at $10/month plus $120/year.
	if metrics.MRR != 40 {
		t.Fatalf("MRR = %v, want 40", metrics.MRR)
	}
	if metrics.CustomerCount != 2 {
		t.Fatalf("CustomerCount = %d, want 2", metrics.CustomerCount)
	}
}

func TestPaddleVerifyWebhook(t *testing.T) {
	payload := []byte(`{"event_type":"transaction.completed"}`)
	secret := "pdl_ntfset_secret"
	ts := "1700000000"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":"))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	client := NewPaddleClient()
	creds := Credentials{SecondarySecret: secret}

	if !client.VerifyWebhook(payload, "ts="+ts+";h1="+validSig, creds) {
		t.Fatalf("expected valid signature to verify")
	}
	if client.VerifyWebhook(payload, "ts="+ts+";h1=deadbeef", creds) {
		t.Fatalf("expected invalid signature to fail")
	}
	if client.VerifyWebhook(payload, "h1="+validSig, creds) {
		t.Fatalf("expected missing timestamp to fail")
	}
}
