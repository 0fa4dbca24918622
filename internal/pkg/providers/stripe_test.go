package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestStripeClient(srv *httptest.Server) *StripeClient {
	return &StripeClient{APIBaseURL: srv.URL, HTTPClient: srv.Client()}
}

func TestStripeValidateCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/account" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id":"acct_1"}`)
	}))
	defer srv.Close()

	client := newTestStripeClient(srv)
	if err := client.ValidateCredentials(context.Background(), Credentials{APIKey: "sk_good"}); err != nil {
		t.Fatalf("expected valid key to pass: %v", err)
	}

	err := client.ValidateCredentials(context.Background(), Credentials{APIKey: "sk_bad"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestStripeFetchRevenuePaginatesAndShortCircuits(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	inRange := now.Add(-24 * time.Hour)
	tooOld := now.Add(-100 * 24 * time.Hour)

	var pagesServed int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		switch r.URL.Query().Get("starting_after") {
		case "":
			json.NewEncoder(w).Encode(stripeChargeList{
				HasMore: true,
				Data: []stripeCharge{
					{ID: "ch_1", Amount: 1999, Currency: "usd", Created: now.Unix(), Paid: true, Status: "succeeded"},
					{ID: "ch_2", Amount: 500, Currency: "usd", Created: inRange.Unix(), Paid: true, Refunded: true, Status: "succeeded"},
					{ID: "ch_3", Amount: 1000, Currency: "eur", Created: inRange.Unix(), Paid: true, Status: "succeeded"},
				},
			})
		case "ch_3":
			// Oldest charge predates the window; pagination must stop here.
			json.NewEncoder(w).Encode(stripeChargeList{
				HasMore: true,
				Data: []stripeCharge{
					{ID: "ch_4", Amount: 2500, Currency: "usd", Created: inRange.Unix(), Paid: true, Status: "succeeded"},
					{ID: "ch_5", Amount: 9999, Currency: "usd", Created: tooOld.Unix(), Paid: true, Status: "succeeded"},
				},
			})
		default:
			t.Fatalf("pagination did not short-circuit, cursor=%s", r.URL.Query().Get("starting_after"))
		}
	}))
	defer srv.Close()

	client := newTestStripeClient(srv)
	rng := DateRange{Start: now.Add(-90 * 24 * time.Hour), End: now}
	points, err := client.FetchRevenue(context.Background(), Credentials{APIKey: "sk_good"}, rng, "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pagesServed != 2 {
		t.Fatalf("expected 2 pages served, got %d", pagesServed)
	}
	// ch_2 is refunded, ch_3 is the wrong currency, ch_5 is out of range.
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Amount != 19.99 || points[1].Amount != 25.00 {
		t.Fatalf("unexpected amounts: %v %v", points[0].Amount, points[1].Amount)
	}
	if points[0].Currency != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", points[0].Currency)
	}
}

func TestStripeFetchCurrentMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/subscriptions":
			fmt.Fprint(w, `{"has_more":false,"data":[
				{"id":"sub_1","customer":"cus_a","items":{"data":[
					{"quantity":1,"price":{"unit_amount":3000,"currency":"usd","recurring":{"interval":"month","interval_count":1}}}
				]}},
				{"id":"sub_2","customer":"cus_b","items":{"data":[
					{"quantity":1,"price":{"unit_amount":12000,"currency":"usd","recurring":{"interval":"year","interval_count":1}}},
					{"quantity":1,"price":{"unit_amount":5000,"currency":"usd","recurring":null}}
				]}}
			]}`)
		case "/v1/charges":
			fmt.Fprint(w, `{"has_more":false,"data":[
				{"id":"ch_1","amount":3000,"currency":"usd","created":1700000000,"paid":true,"status":"succeeded"},
				{"id":"ch_2","amount":700,"currency":"eur","created":1700000001,"paid":true,"status":"succeeded"}
			]}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newTestStripeClient(srv)
	metrics, err := client.FetchCurrentMetrics(context.Background(), Credentials{APIKey: "sk_good"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// $30/month plus $120/year; the one-time line item contributes nothing.
	if metrics.MRR != 40 {
		t.Fatalf("MRR = %v, want 40", metrics.MRR)
	}
	if metrics.ARR != 480 {
		t.Fatalf("ARR = %v, want 480", metrics.ARR)
	}
	if metrics.CustomerCount != 2 {
		t.Fatalf("CustomerCount = %d, want 2", metrics.CustomerCount)
	}
	// Lifetime total counts only the subscription currency; the EUR charge
	// stays out.
	if metrics.TotalRevenue != 30 {
		t.Fatalf("TotalRevenue = %v, want 30", metrics.TotalRevenue)
	}
}

func TestStripeVerifyWebhook(t *testing.T) {
	payload := []byte(`{"type":"charge.succeeded"}`)
	secret := "whsec_test"
	ts := "1700000000"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	client := NewStripeClient()
	creds := Credentials{SecondarySecret: secret}

	header := "t=" + ts + ",v1=" + validSig
	if !client.VerifyWebhook(payload, header, creds) {
		t.Fatalf("expected valid signature to verify")
	}
	// Extra v1 entries from secret rotation are tolerated.
	rotated := "t=" + ts + ",v1=deadbeef,v1=" + validSig
	if !client.VerifyWebhook(payload, rotated, creds) {
		t.Fatalf("expected rotated-secret header to verify")
	}
	if client.VerifyWebhook(payload, "t="+ts+",v1=deadbeef", creds) {
		t.Fatalf("expected invalid signature to fail")
	}
	if client.VerifyWebhook([]byte(`{"tampered":true}`), header, creds) {
		t.Fatalf("expected tampered payload to fail")
	}
	if client.VerifyWebhook(payload, header, Credentials{}) {
		t.Fatalf("expected missing secret to fail")
	}
}
