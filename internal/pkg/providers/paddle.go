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

const defaultPaddleAPIBaseURL = "https://api.paddle.com"

// PaddleClient talks to the Paddle Billing API. Amounts arrive as strings
// in the lowest currency denomination.
type PaddleClient struct {
	APIBaseURL string
	HTTPClient *http.Client
}

func NewPaddleClient() *PaddleClient {
	return &PaddleClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("PADDLE_API_BASE_URL", defaultPaddleAPIBaseURL), "/"),
		HTTPClient: newHTTPClient(),
	}
}

func (c *PaddleClient) Provider() string { return models.ProviderPaddle }

func (c *PaddleClient) authHeaders(creds Credentials) map[string]string {
	return map[string]string{"Authorization": "Bearer " + strings.TrimSpace(creds.APIKey)}
}

// ValidateCredentials lists event types, a read-only call every valid key
// may perform.
func (c *PaddleClient) ValidateCredentials(ctx context.Context, creds Credentials) error {
	_, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/event-types", c.authHeaders(creds))
	return err
}

type paddleMeta struct {
	Pagination struct {
		Next    string `json:"next"`
		HasMore bool   `json:"has_more"`
	} `json:"pagination"`
}

type paddleTransaction struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CurrencyCode string `json:"currency_code"`
	BilledAt     string `json:"billed_at"`
	Details      struct {
		Totals struct {
			Total string `json:"total"`
		} `json:"totals"`
	} `json:"details"`
}

type paddleTransactionList struct {
	Data []paddleTransaction `json:"data"`
	Meta paddleMeta          `json:"meta"`
}

// FetchRevenue pages /transactions ordered newest first and short-circuits
// once a page's oldest record predates the range start.
func (c *PaddleClient) FetchRevenue(ctx context.Context, creds Credentials, rng DateRange, currency string) ([]RawRevenuePoint, error) {
	q := url.Values{}
	q.Set("status", "completed")
	q.Set("per_page", "50")
	q.Set("order_by", "billed_at[DESC]")
	next := c.APIBaseURL + "/transactions?" + q.Encode()

	var points []RawRevenuePoint
	for next != "" {
		body, err := getJSON(ctx, c.HTTPClient, next, c.authHeaders(creds))
		if err != nil {
			return nil, err
		}
		var page paddleTransactionList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: paddle transactions: %v", ErrProvider, err)
		}
		if len(page.Data) == 0 {
			break
		}

		pastStart := false
		for _, tx := range page.Data {
			billedAt, err := time.Parse(time.RFC3339, tx.BilledAt)
			if err != nil {
				continue
			}
			if !rng.Start.IsZero() && billedAt.Before(rng.Start) {
				pastStart = true
				continue
			}
			if !rng.End.IsZero() && billedAt.After(rng.End) {
				continue
			}
			if currency != "" && !strings.EqualFold(tx.CurrencyCode, currency) {
				continue
			}
			cents, err := strconv.ParseInt(tx.Details.Totals.Total, 10, 64)
			if err != nil {
				continue
			}
			points = append(points, RawRevenuePoint{
				OccurredAt: billedAt.UTC(),
				Amount:     float64(cents) / 100,
				Currency:   strings.ToUpper(tx.CurrencyCode),
			})
		}

		if pastStart || !page.Meta.Pagination.HasMore {
			break
		}
		next = page.Meta.Pagination.Next
	}
	return points, nil
}

type paddleSubscription struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Items      []struct {
		Quantity int `json:"quantity"`
		Price    struct {
			UnitPrice struct {
				Amount       string `json:"amount"`
				CurrencyCode string `json:"currency_code"`
			} `json:"unit_price"`
			BillingCycle *struct {
				Interval  string `json:"interval"`
				Frequency int    `json:"frequency"`
			} `json:"billing_cycle"`
		} `json:"price"`
	} `json:"items"`
}

type paddleSubscriptionList struct {
	Data []paddleSubscription `json:"data"`
	Meta paddleMeta           `json:"meta"`
}

func (c *PaddleClient) fetchActiveSubscriptions(ctx context.Context, creds Credentials) ([]paddleSubscription, error) {
	q := url.Values{}
	q.Set("status", "active")
	q.Set("per_page", "50")
	next := c.APIBaseURL + "/subscriptions?" + q.Encode()

	var subs []paddleSubscription
	for next != "" {
		body, err := getJSON(ctx, c.HTTPClient, next, c.authHeaders(creds))
		if err != nil {
			return nil, err
		}
		var page paddleSubscriptionList
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("%w: paddle subscriptions: %v", ErrProvider, err)
		}
		subs = append(subs, page.Data...)
		if !page.Meta.Pagination.HasMore || len(page.Data) == 0 {
			break
		}
		next = page.Meta.Pagination.Next
	}
	return subs, nil
}

func (c *PaddleClient) FetchCurrentMetrics(ctx context.Context, creds Credentials) (*CurrentMetrics, error) {
	subs, err := c.fetchActiveSubscriptions(ctx, creds)
	if err != nil {
		return nil, err
	}

	var mrr float64
	currency := ""
	customers := make(map[string]struct{})
	for _, sub := range subs {
		if sub.CustomerID != "" {
			customers[sub.CustomerID] = struct{}{}
		}
		for _, item := range sub.Items {
			if item.Price.BillingCycle == nil {
				continue
			}
			cents, err := strconv.ParseInt(item.Price.UnitPrice.Amount, 10, 64)
			if err != nil {
				continue
			}
			qty := item.Quantity
			if qty == 0 {
				qty = 1
			}
			amount := float64(cents) / 100 * float64(qty)
			mrr += MonthlyAmountEvery(amount, item.Price.BillingCycle.Interval, item.Price.BillingCycle.Frequency)
			if currency == "" {
				currency = strings.ToUpper(item.Price.UnitPrice.CurrencyCode)
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

func (c *PaddleClient) FetchCustomerCount(ctx context.Context, creds Credentials) (int, error) {
	subs, err := c.fetchActiveSubscriptions(ctx, creds)
	if err != nil {
		return 0, err
	}
	customers := make(map[string]struct{})
	for _, sub := range subs {
		if sub.CustomerID != "" {
			customers[sub.CustomerID] = struct{}{}
		}
	}
	return len(customers), nil
}

// VerifyWebhook checks the Paddle-Signature header: "ts=...;h1=..." with
// HMAC-SHA256 over "<ts>:<payload>".
func (c *PaddleClient) VerifyWebhook(payload []byte, signature string, creds Credentials) bool {
	secret := strings.TrimSpace(creds.SecondarySecret)
	if secret == "" || signature == "" {
		return false
	}

	var ts, h1 string
	for _, part := range strings.Split(signature, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "ts":
			ts = kv[1]
		case "h1":
			h1 = kv[1]
		}
	}
	if ts == "" || h1 == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(h1)))
}
