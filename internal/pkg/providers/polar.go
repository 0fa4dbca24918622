package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
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

const defaultPolarAPIBaseURL = "https://api.polar.sh"

// PolarClient talks to the Polar API. Orders use page-number pagination
// with no ordering guarantee, so revenue fetches paginate exhaustively.
type PolarClient struct {
	APIBaseURL string
	HTTPClient *http.Client
}

func NewPolarClient() *PolarClient {
	return &PolarClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("POLAR_API_BASE_URL", defaultPolarAPIBaseURL), "/"),
		HTTPClient: newHTTPClient(),
	}
}

func (c *PolarClient) Provider() string { return models.ProviderPolar }

func (c *PolarClient) authHeaders(creds Credentials) map[string]string {
	return map[string]string{"Authorization": "Bearer " + strings.TrimSpace(creds.APIKey)}
}

func (c *PolarClient) ValidateCredentials(ctx context.Context, creds Credentials) error {
	_, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/organizations?limit=1", c.authHeaders(creds))
	return err
}

type polarPagination struct {
	TotalCount int `json:"total_count"`
	MaxPage    int `json:"max_page"`
}

type polarOrder struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Refunded  bool   `json:"refunded"`
	CreatedAt string `json:"created_at"`
}

type polarOrderList struct {
	Items      []polarOrder    `json:"items"`
	Pagination polarPagination `json:"pagination"`
}

// FetchRevenue walks every order page; Polar gives no newest-first
// guarantee, so there is no short-circuit and filtering happens per order.
func (c *PolarClient) FetchRevenue(ctx context.Context, creds Credentials, rng DateRange, currency string) ([]RawRevenuePoint, error) {
	var points []RawRevenuePoint
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("limit", "100")
		q.Set("page", strconv.Itoa(page))

		body, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/orders?"+q.Encode(), c.authHeaders(creds))
		if err != nil {
			return nil, err
		}
		var list polarOrderList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("%w: polar orders: %v", ErrProvider, err)
		}
		if len(list.Items) == 0 {
			break
		}

		for _, order := range list.Items {
			if order.Status != "paid" || order.Refunded {
				continue
			}
			createdAt, err := time.Parse(time.RFC3339, order.CreatedAt)
			if err != nil {
				continue
			}
			if !rng.Start.IsZero() && createdAt.Before(rng.Start) {
				continue
			}
			if !rng.End.IsZero() && createdAt.After(rng.End) {
				continue
			}
			if currency != "" && !strings.EqualFold(order.Currency, currency) {
				continue
			}
			points = append(points, RawRevenuePoint{
				OccurredAt: createdAt.UTC(),
				Amount:     float64(order.Amount) / 100,
				Currency:   strings.ToUpper(order.Currency),
			})
		}

		if list.Pagination.MaxPage > 0 && page >= list.Pagination.MaxPage {
			break
		}
	}
	return points, nil
}

type polarSubscription struct {
	ID                string `json:"id"`
	CustomerID        string `json:"customer_id"`
	Status            string `json:"status"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	RecurringInterval string `json:"recurring_interval"`
}

type polarSubscriptionList struct {
	Items      []polarSubscription `json:"items"`
	Pagination polarPagination     `json:"pagination"`
}

func (c *PolarClient) fetchActiveSubscriptions(ctx context.Context, creds Credentials) ([]polarSubscription, error) {
	var subs []polarSubscription
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("active", "true")
		q.Set("limit", "100")
		q.Set("page", strconv.Itoa(page))

		body, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/subscriptions?"+q.Encode(), c.authHeaders(creds))
		if err != nil {
			return nil, err
		}
		var list polarSubscriptionList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("%w: polar subscriptions: %v", ErrProvider, err)
		}
		if len(list.Items) == 0 {
			break
		}
		subs = append(subs, list.Items...)
		if list.Pagination.MaxPage > 0 && page >= list.Pagination.MaxPage {
			break
		}
	}
	return subs, nil
}

func (c *PolarClient) FetchCurrentMetrics(ctx context.Context, creds Credentials) (*CurrentMetrics, error) {
	subs, err := c.fetchActiveSubscriptions(ctx, creds)
	if err != nil {
		return nil, err
	}

	var mrr float64
	currency := ""
	customers := make(map[string]struct{})
	for _, sub := range subs {
		if sub.Status != "active" {
			continue
		}
		if sub.CustomerID != "" {
			customers[sub.CustomerID] = struct{}{}
		}
		mrr += MonthlyAmount(float64(sub.Amount)/100, sub.RecurringInterval)
		if currency == "" {
			currency = strings.ToUpper(sub.Currency)
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

func (c *PolarClient) FetchCustomerCount(ctx context.Context, creds Credentials) (int, error) {
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

// VerifyWebhook checks Polar's standard-webhooks style signature: base64
// HMAC-SHA256 entries prefixed with "v1,".
func (c *PolarClient) VerifyWebhook(payload []byte, signature string, creds Credentials) bool {
	secret := strings.TrimSpace(creds.SecondarySecret)
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, candidate := range strings.Fields(signature) {
		candidate = strings.TrimPrefix(candidate, "v1,")
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return true
		}
	}
	return false
}
