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

const defaultLemonSqueezyAPIBaseURL = "https://api.lemonsqueezy.com"

// LemonSqueezyClient talks to the Lemon Squeezy JSON:API. The secondary
// secret, when numeric, scopes requests to one store; it doubles as the
// webhook signing secret otherwise.
type LemonSqueezyClient struct {
	APIBaseURL string
	HTTPClient *http.Client
}

func NewLemonSqueezyClient() *LemonSqueezyClient {
	return &LemonSqueezyClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("LEMONSQUEEZY_API_BASE_URL", defaultLemonSqueezyAPIBaseURL), "/"),
		HTTPClient: newHTTPClient(),
	}
}

func (c *LemonSqueezyClient) Provider() string { return models.ProviderLemonSqueezy }

func (c *LemonSqueezyClient) authHeaders(creds Credentials) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + strings.TrimSpace(creds.APIKey),
		"Accept":        "application/vnd.api+json",
	}
}

func (c *LemonSqueezyClient) ValidateCredentials(ctx context.Context, creds Credentials) error {
	_, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/users/me", c.authHeaders(creds))
	return err
}

func storeIDFilter(creds Credentials) string {
	id := strings.TrimSpace(creds.SecondarySecret)
	if id == "" {
		return ""
	}
	if _, err := strconv.Atoi(id); err != nil {
		return ""
	}
	return id
}

type lsPageMeta struct {
	Page struct {
		CurrentPage int `json:"currentPage"`
		LastPage    int `json:"lastPage"`
	} `json:"page"`
}

type lsOrder struct {
	ID         string `json:"id"`
	Attributes struct {
		Status    string `json:"status"`
		Total     int64  `json:"total"`
		Currency  string `json:"currency"`
		CreatedAt string `json:"created_at"`
	} `json:"attributes"`
}

type lsOrderList struct {
	Data []lsOrder  `json:"data"`
	Meta lsPageMeta `json:"meta"`
}

// FetchRevenue pages /v1/orders sorted newest first, short-circuiting once
// the oldest order of a page predates the range start.
func (c *LemonSqueezyClient) FetchRevenue(ctx context.Context, creds Credentials, rng DateRange, currency string) ([]RawRevenuePoint, error) {
	var points []RawRevenuePoint
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page[size]", "100")
		q.Set("page[number]", strconv.Itoa(page))
		q.Set("sort", "-createdAt")
		if storeID := storeIDFilter(creds); storeID != "" {
			q.Set("filter[store_id]", storeID)
		}

		body, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/orders?"+q.Encode(), c.authHeaders(creds))
		if err != nil {
			return nil, err
		}
		var list lsOrderList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("%w: lemonsqueezy orders: %v", ErrProvider, err)
		}
		if len(list.Data) == 0 {
			break
		}

		pastStart := false
		for _, order := range list.Data {
			createdAt, err := time.Parse(time.RFC3339, order.Attributes.CreatedAt)
			if err != nil {
				continue
			}
			if !rng.Start.IsZero() && createdAt.Before(rng.Start) {
				pastStart = true
				continue
			}
			if !rng.End.IsZero() && createdAt.After(rng.End) {
				continue
			}
			if order.Attributes.Status != "paid" {
				continue
			}
			if currency != "" && !strings.EqualFold(order.Attributes.Currency, currency) {
				continue
			}
			points = append(points, RawRevenuePoint{
				OccurredAt: createdAt.UTC(),
				Amount:     float64(order.Attributes.Total) / 100,
				Currency:   strings.ToUpper(order.Attributes.Currency),
			})
		}

		if pastStart || (list.Meta.Page.LastPage > 0 && page >= list.Meta.Page.LastPage) {
			break
		}
	}
	return points, nil
}

type lsSubscription struct {
	ID         string `json:"id"`
	Attributes struct {
		Status     string `json:"status"`
		CustomerID int64  `json:"customer_id"`
	} `json:"attributes"`
	Relationships struct {
		Price struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"price"`
	} `json:"relationships"`
}

type lsPrice struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		UnitPrice               int64  `json:"unit_price"`
		RenewalIntervalUnit     string `json:"renewal_interval_unit"`
		RenewalIntervalQuantity int    `json:"renewal_interval_quantity"`
	} `json:"attributes"`
}

type lsSubscriptionList struct {
	Data     []lsSubscription `json:"data"`
	Included []lsPrice        `json:"included"`
	Meta     lsPageMeta       `json:"meta"`
}

func (c *LemonSqueezyClient) fetchActiveSubscriptions(ctx context.Context, creds Credentials) ([]lsSubscription, map[string]lsPrice, error) {
	var subs []lsSubscription
	prices := make(map[string]lsPrice)

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("filter[status]", "active")
		q.Set("include", "price")
		q.Set("page[size]", "100")
		q.Set("page[number]", strconv.Itoa(page))
		if storeID := storeIDFilter(creds); storeID != "" {
			q.Set("filter[store_id]", storeID)
		}

		body, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/subscriptions?"+q.Encode(), c.authHeaders(creds))
		if err != nil {
			return nil, nil, err
		}
		var list lsSubscriptionList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, nil, fmt.Errorf("%w: lemonsqueezy subscriptions: %v", ErrProvider, err)
		}
		if len(list.Data) == 0 {
			break
		}
		subs = append(subs, list.Data...)
		for _, price := range list.Included {
			if price.Type == "prices" {
				prices[price.ID] = price
			}
		}
		if list.Meta.Page.LastPage > 0 && page >= list.Meta.Page.LastPage {
			break
		}
	}
	return subs, prices, nil
}

func (c *LemonSqueezyClient) FetchCurrentMetrics(ctx context.Context, creds Credentials) (*CurrentMetrics, error) {
	subs, prices, err := c.fetchActiveSubscriptions(ctx, creds)
	if err != nil {
		return nil, err
	}

	var mrr float64
	customers := make(map[int64]struct{})
	for _, sub := range subs {
		if sub.Attributes.Status != "active" {
			continue
		}
		if sub.Attributes.CustomerID != 0 {
			customers[sub.Attributes.CustomerID] = struct{}{}
		}
		price, ok := prices[sub.Relationships.Price.Data.ID]
		if !ok {
			continue
		}
		mrr += MonthlyAmountEvery(
			float64(price.Attributes.UnitPrice)/100,
			price.Attributes.RenewalIntervalUnit,
			price.Attributes.RenewalIntervalQuantity,
		)
	}

	lifetime, err := c.FetchRevenue(ctx, creds, DateRange{End: time.Now()}, "")
	if err != nil {
		return nil, err
	}
	currency := ""
	if len(lifetime) > 0 {
		currency = lifetime[len(lifetime)-1].Currency
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

func (c *LemonSqueezyClient) FetchCustomerCount(ctx context.Context, creds Credentials) (int, error) {
	subs, _, err := c.fetchActiveSubscriptions(ctx, creds)
	if err != nil {
		return 0, err
	}
	customers := make(map[int64]struct{})
	for _, sub := range subs {
		if sub.Attributes.CustomerID != 0 {
			customers[sub.Attributes.CustomerID] = struct{}{}
		}
	}
	return len(customers), nil
}

// VerifyWebhook checks the X-Signature header: hex HMAC-SHA256 over the
// raw payload with the store's signing secret.
func (c *LemonSqueezyClient) VerifyWebhook(payload []byte, signature string, creds Credentials) bool {
	secret := strings.TrimSpace(creds.SecondarySecret)
	sig := strings.TrimSpace(signature)
	if secret == "" || sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}
