package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

// StripeClient talks to the Stripe REST API with cursor pagination.
type StripeClient struct {
	APIBaseURL string
	HTTPClient *http.Client
}

func NewStripeClient() *StripeClient {
	return &StripeClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		HTTPClient: newHTTPClient(),
	}
}

func (c *StripeClient) Provider() string { return models.ProviderStripe }

func (c *StripeClient) authHeaders(creds Credentials) map[string]string {
	return map[string]string{"Authorization": "Bearer " + strings.TrimSpace(creds.APIKey)}
}

// ValidateCredentials reads the account resource, which is free of side
// effects and rejects bad keys with a 401.
func (c *StripeClient) ValidateCredentials(ctx context.Context, creds Credentials) error {
	_, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/account", c.authHeaders(creds))
	return err
}

type stripeCharge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Created  int64  `json:"created"`
	Paid     bool   `json:"paid"`
	Refunded bool   `json:"refunded"`
	Status   string `json:"status"`
}

type stripeChargeList struct {
	Data    []stripeCharge `json:"data"`
	HasMore bool           `json:"has_more"`
}

// FetchRevenue pages through /v1/charges. Stripe returns charges newest
// first, so pagination short-circuits once the oldest charge of a page
// predates the range start.
func (c *StripeClient) FetchRevenue(ctx context.Context, creds Credentials, rng DateRange, currency string) ([]RawRevenuePoint, error) {
	var points []RawRevenuePoint
	startingAfter := ""

	for {
		q := url.Values{}
		q.Set("limit", "100")
		if !rng.Start.IsZero() {
			q.Set("created[gte]", strconv.FormatInt(rng.Start.Unix(), 10))
		}
		if !rng.End.IsZero() {
			q.Set("created[lte]", strconv.FormatInt(rng.End.Unix(), 10))
		}
		if startingAfter != "" {
			q.Set("starting_after", startingAfter)
		}

		body, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/charges?"+q.Encode(), c.authHeaders(creds))
		if err != nil {
			return nil, err
		}
		var page stripeChargeList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: stripe charges: %v", ErrProvider, err)
		}
		if len(page.Data) == 0 {
			break
		}

		pastStart := false
		for _, ch := range page.Data {
			created := time.Unix(ch.Created, 0).UTC()
			if !rng.Start.IsZero() && created.Before(rng.Start) {
				pastStart = true
				continue
			}
			if !ch.Paid || ch.Refunded || ch.Status != "succeeded" {
				continue
			}
			if currency != "" && !strings.EqualFold(ch.Currency, currency) {
				continue
			}
			points = append(points, RawRevenuePoint{
				OccurredAt: created,
				Amount:     float64(ch.Amount) / 100,
				Currency:   strings.ToUpper(ch.Currency),
			})
		}

		if pastStart || !page.HasMore {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}
	return points, nil
}

type stripeSubscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Items    struct {
		Data []struct {
			Quantity int64 `json:"quantity"`
			Price    struct {
				UnitAmount int64  `json:"unit_amount"`
				Currency   string `json:"currency"`
				Recurring  *struct {
					Interval      string `json:"interval"`
					IntervalCount int    `json:"interval_count"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeSubscriptionList struct {
	Data    []stripeSubscription `json:"data"`
	HasMore bool                 `json:"has_more"`
}

func (c *StripeClient) fetchActiveSubscriptions(ctx context.Context, creds Credentials) ([]stripeSubscription, error) {
	var subs []stripeSubscription
	startingAfter := ""
	for {
		q := url.Values{}
		q.Set("status", "active")
		q.Set("limit", "100")
		if startingAfter != "" {
			q.Set("starting_after", startingAfter)
		}
		body, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/subscriptions?"+q.Encode(), c.authHeaders(creds))
		if err != nil {
			return nil, err
		}
		var page stripeSubscriptionList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: stripe subscriptions: %v", ErrProvider, err)
		}
		subs = append(subs, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}
	return subs, nil
}

// FetchCurrentMetrics derives MRR from active subscription line items and
// lifetime revenue from the full charge history.
func (c *StripeClient) FetchCurrentMetrics(ctx context.Context, creds Credentials) (*CurrentMetrics, error) {
	subs, err := c.fetchActiveSubscriptions(ctx, creds)
	if err != nil {
		return nil, err
	}

	var mrr float64
	currency := ""
	customers := make(map[string]struct{})
	for _, sub := range subs {
		if sub.Customer != "" {
			customers[sub.Customer] = struct{}{}
		}
		for _, item := range sub.Items.Data {
			if item.Price.Recurring == nil {
				continue // one-time prices never count toward MRR
			}
			qty := item.Quantity
			if qty == 0 {
				qty = 1
			}
			amount := float64(item.Price.UnitAmount) / 100 * float64(qty)
			mrr += MonthlyAmountEvery(amount, item.Price.Recurring.Interval, item.Price.Recurring.IntervalCount)
			if currency == "" {
				currency = strings.ToUpper(item.Price.Currency)
			}
		}
	}

	lifetime, err := c.FetchRevenue(ctx, creds, DateRange{End: time.Now()}, "")
	if err != nil {
		return nil, err
	}

	mrr = roundCents(mrr)
	return &CurrentMetrics{
		MRR:           mrr,
		ARR:           roundCents(mrr * 12),
		TotalRevenue:  sumRevenue(lifetime, currency),
		CustomerCount: len(customers),
		Currency:      currency,
	}, nil
}

// FetchCustomerCount estimates from unique active-subscription customers;
// Stripe has no cheap total-customers endpoint.
func (c *StripeClient) FetchCustomerCount(ctx context.Context, creds Credentials) (int, error) {
	subs, err := c.fetchActiveSubscriptions(ctx, creds)
	if err != nil {
		return 0, err
	}
	customers := make(map[string]struct{})
	for _, sub := range subs {
		if sub.Customer != "" {
			customers[sub.Customer] = struct{}{}
		}
	}
	return len(customers), nil
}

// VerifyWebhook checks the Stripe-Signature header: HMAC-SHA256 over
// "<t>.<payload>" with the webhook secret, compared against every v1 entry.
func (c *StripeClient) VerifyWebhook(payload []byte, signature string, creds Credentials) bool {
	secret := strings.TrimSpace(creds.SecondarySecret)
	if secret == "" || signature == "" {
		return false
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(signature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(candidate))) {
			return true
		}
	}
	return false
}
