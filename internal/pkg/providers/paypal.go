package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/env"
)

const defaultPayPalAPIBaseURL = "https://api-m.paypal.com"

// The reporting API rejects windows wider than 31 days, so revenue fetches
// are chunked month by month.
const paypalMaxWindow = 31 * 24 * time.Hour

// PayPalClient talks to the PayPal REST API. The connection API key holds
// "client_id:client_secret"; an OAuth access token is exchanged per call
// sequence. The secondary secret holds the webhook id.
type PayPalClient struct {
	APIBaseURL string
	HTTPClient *http.Client
}

func NewPayPalClient() *PayPalClient {
	return &PayPalClient{
		APIBaseURL: strings.TrimRight(env.GetEnv("PAYPAL_API_BASE_URL", defaultPayPalAPIBaseURL), "/"),
		HTTPClient: newHTTPClient(),
	}
}

func (c *PayPalClient) Provider() string { return models.ProviderPayPal }

func splitClientCredentials(creds Credentials) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(creds.APIKey), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: paypal key must be client_id:client_secret", ErrInvalidCredentials)
	}
	return parts[0], parts[1], nil
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *PayPalClient) accessToken(ctx context.Context, creds Credentials) (string, error) {
	clientID, clientSecret, err := splitClientCredentials(creds)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	body, err := postForm(ctx, c.HTTPClient, c.APIBaseURL+"/v1/oauth2/token", form, clientID, clientSecret)
	if err != nil {
		return "", err
	}

	var token paypalTokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("%w: paypal token: %v", ErrProvider, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: paypal token exchange returned empty access_token", ErrInvalidCredentials)
	}
	return token.AccessToken, nil
}

// ValidateCredentials exchanges the client credentials for a token; the
// exchange itself is side-effect free.
func (c *PayPalClient) ValidateCredentials(ctx context.Context, creds Credentials) error {
	_, err := c.accessToken(ctx, creds)
	return err
}

type paypalTransaction struct {
	TransactionInfo struct {
		TransactionID        string `json:"transaction_id"`
		TransactionEventCode string `json:"transaction_event_code"`
		TransactionStatus    string `json:"transaction_status"`
		TransactionAmount    struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"transaction_amount"`
		TransactionInitiationDate string `json:"transaction_initiation_date"`
	} `json:"transaction_info"`
	PayerInfo struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer_info"`
}

type paypalTransactionList struct {
	TransactionDetails []paypalTransaction `json:"transaction_details"`
	TotalPages         int                 `json:"total_pages"`
}

func (c *PayPalClient) fetchTransactions(ctx context.Context, token string, rng DateRange) ([]paypalTransaction, error) {
	var all []paypalTransaction

	// Walk the range in 31-day chunks, oldest first.
	for chunkStart := rng.Start; chunkStart.Before(rng.End); {
		chunkEnd := chunkStart.Add(paypalMaxWindow)
		if chunkEnd.After(rng.End) {
			chunkEnd = rng.End
		}

		for page := 1; ; page++ {
			q := url.Values{}
			q.Set("start_date", chunkStart.UTC().Format(time.RFC3339))
			q.Set("end_date", chunkEnd.UTC().Format(time.RFC3339))
			q.Set("fields", "transaction_info,payer_info")
			q.Set("page_size", "500")
			q.Set("page", strconv.Itoa(page))

			body, err := getJSON(ctx, c.HTTPClient, c.APIBaseURL+"/v1/reporting/transactions?"+q.Encode(),
				map[string]string{"Authorization": "Bearer " + token})
			if err != nil {
				return nil, err
			}
			var list paypalTransactionList
			if err := json.Unmarshal(body, &list); err != nil {
				return nil, fmt.Errorf("%w: paypal transactions: %v", ErrProvider, err)
			}
			all = append(all, list.TransactionDetails...)
			if page >= list.TotalPages || len(list.TransactionDetails) == 0 {
				break
			}
		}

		chunkStart = chunkEnd
	}
	return all, nil
}

// FetchRevenue enumerates settled transactions ("S" status) with positive
// amounts; refunds and reversals carry negative values and are skipped.
func (c *PayPalClient) FetchRevenue(ctx context.Context, creds Credentials, rng DateRange, currency string) ([]RawRevenuePoint, error) {
	token, err := c.accessToken(ctx, creds)
	if err != nil {
		return nil, err
	}
	if rng.Start.IsZero() {
		// The reporting API reaches back at most three years.
		rng.Start = time.Now().AddDate(-3, 0, 0)
	}
	if rng.End.IsZero() {
		rng.End = time.Now()
	}

	txs, err := c.fetchTransactions(ctx, token, rng)
	if err != nil {
		return nil, err
	}

	var points []RawRevenuePoint
	for _, tx := range txs {
		info := tx.TransactionInfo
		if info.TransactionStatus != "S" {
			continue
		}
		amount, err := strconv.ParseFloat(info.TransactionAmount.Value, 64)
		if err != nil || amount <= 0 {
			continue
		}
		if currency != "" && !strings.EqualFold(info.TransactionAmount.CurrencyCode, currency) {
			continue
		}
		occurredAt, err := time.Parse(time.RFC3339, info.TransactionInitiationDate)
		if err != nil {
			continue
		}
		points = append(points, RawRevenuePoint{
			OccurredAt: occurredAt.UTC(),
			Amount:     amount,
			Currency:   strings.ToUpper(info.TransactionAmount.CurrencyCode),
		})
	}
	return points, nil
}

// FetchCurrentMetrics estimates recurring revenue from the last 30 days of
// subscription payment transactions (event code T0002); PayPal has no
// endpoint that enumerates all active subscriptions.
func (c *PayPalClient) FetchCurrentMetrics(ctx context.Context, creds Credentials) (*CurrentMetrics, error) {
	token, err := c.accessToken(ctx, creds)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	txs, err := c.fetchTransactions(ctx, token, DateRange{Start: now.AddDate(0, 0, -30), End: now})
	if err != nil {
		return nil, err
	}

	var mrr float64
	currency := ""
	customers := make(map[string]struct{})
	for _, tx := range txs {
		info := tx.TransactionInfo
		if info.TransactionStatus != "S" {
			continue
		}
		amount, err := strconv.ParseFloat(info.TransactionAmount.Value, 64)
		if err != nil || amount <= 0 {
			continue
		}
		if tx.PayerInfo.EmailAddress != "" {
			customers[tx.PayerInfo.EmailAddress] = struct{}{}
		}
		if info.TransactionEventCode == "T0002" {
			mrr += amount
			if currency == "" {
				currency = strings.ToUpper(info.TransactionAmount.CurrencyCode)
			}
		}
	}

	lifetime, err := c.FetchRevenue(ctx, creds, DateRange{End: now}, "")
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

// FetchCustomerCount estimates from unique payer emails over the last 30
// days of settled transactions.
func (c *PayPalClient) FetchCustomerCount(ctx context.Context, creds Credentials) (int, error) {
	metrics, err := c.FetchCurrentMetrics(ctx, creds)
	if err != nil {
		return 0, err
	}
	return metrics.CustomerCount, nil
}

type paypalWebhookHeaders struct {
	TransmissionID   string `json:"transmission_id"`
	TransmissionTime string `json:"transmission_time"`
	TransmissionSig  string `json:"transmission_sig"`
	CertURL          string `json:"cert_url"`
	AuthAlgo         string `json:"auth_algo"`
}

// VerifyWebhook delegates to PayPal's verify-webhook-signature endpoint.
// The signature argument is the JSON-encoded transmission headers; the
// connection's secondary secret holds the webhook id.
func (c *PayPalClient) VerifyWebhook(payload []byte, signature string, creds Credentials) bool {
	webhookID := strings.TrimSpace(creds.SecondarySecret)
	if webhookID == "" || signature == "" {
		return false
	}
	var headers paypalWebhookHeaders
	if err := json.Unmarshal([]byte(signature), &headers); err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	token, err := c.accessToken(ctx, creds)
	if err != nil {
		return false
	}

	reqBody := map[string]interface{}{
		"transmission_id":   headers.TransmissionID,
		"transmission_time": headers.TransmissionTime,
		"transmission_sig":  headers.TransmissionSig,
		"cert_url":          headers.CertURL,
		"auth_algo":         headers.AuthAlgo,
		"webhook_id":        webhookID,
		"webhook_event":     json.RawMessage(payload),
	}
	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIBaseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(encoded))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false
	}
	return out.VerificationStatus == "SUCCESS"
}
