package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
)

// Sentinel errors for the orchestrator's per-connection error handling.
var (
	// ErrProvider marks transient processor failures (unreachable API,
	// rate limits, malformed responses). Retried on the next scheduled pass.
	ErrProvider = errors.New("provider error")
	// ErrInvalidCredentials marks rejected API keys.
	ErrInvalidCredentials = errors.New("invalid provider credentials")
)

// Credentials carries the decrypted secrets for one connection. Instances
// are connection-scoped and must never be logged or persisted.
type Credentials struct {
	APIKey          string
	SecondarySecret string // webhook secret, vendor id or store id, provider-dependent
}

// DateRange is the inclusive [Start, End] window of a revenue fetch.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// RawRevenuePoint is one settled transaction as reported by a processor.
// Amounts are in major currency units; refunded and pending transactions
// are filtered out by the adapters.
type RawRevenuePoint struct {
	OccurredAt time.Time
	Amount     float64
	Currency   string
}

// CurrentMetrics is the processor's current-state view, computed from
// active subscriptions rather than historical transactions. TotalRevenue is
// the lifetime sum of settled charges in Currency; other currencies are
// excluded, never converted.
type CurrentMetrics struct {
	MRR           float64
	ARR           float64
	TotalRevenue  float64
	CustomerCount int
	Currency      string
}

// Adapter is the uniform capability contract every processor client
// implements. It hides per-processor pagination, billing-cycle semantics
// and currency units.
type Adapter interface {
	Provider() string
	// ValidateCredentials performs a cheap, side-effect-free API call to
	// confirm a key before a connection is accepted.
	ValidateCredentials(ctx context.Context, creds Credentials) error
	// FetchRevenue enumerates paid, settled transactions within the range,
	// paginating until the page is empty or (for newest-first APIs) the
	// oldest fetched record predates the range start. The currency filter
	// is applied where the processor supports it and is never converted.
	FetchRevenue(ctx context.Context, creds Credentials, rng DateRange, currency string) ([]RawRevenuePoint, error)
	// FetchCurrentMetrics computes MRR/ARR and customer count from the
	// currently active subscriptions.
	FetchCurrentMetrics(ctx context.Context, creds Credentials) (*CurrentMetrics, error)
	// FetchCustomerCount is best-effort; processors without a direct
	// endpoint estimate from unique active-subscription customers.
	FetchCustomerCount(ctx context.Context, creds Credentials) (int, error)
	// VerifyWebhook runs the processor-specific signature check.
	VerifyWebhook(payload []byte, signature string, creds Credentials) bool
}

// ForProvider returns a fresh adapter for the given provider type. Adapters
// are cheap, stateless HTTP clients; a new instance per sync keeps them
// connection-scoped.
func ForProvider(provider string) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case models.ProviderStripe:
		return NewStripeClient(), nil
	case models.ProviderPaddle:
		return NewPaddleClient(), nil
	case models.ProviderPolar:
		return NewPolarClient(), nil
	case models.ProviderPayPal:
		return NewPayPalClient(), nil
	case models.ProviderLemonSqueezy:
		return NewLemonSqueezyClient(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// Average weeks per month used for weekly plan normalization.
const weeksPerMonth = 4.33

// MonthlyAmount converts a recurring amount to its monthly equivalent:
// monthly x1, yearly /12, weekly x4.33, daily x30. One-time (non-recurring)
// charges contribute nothing to MRR and return 0.
func MonthlyAmount(amount float64, interval string) float64 {
	return MonthlyAmountEvery(amount, interval, 1)
}

// MonthlyAmountEvery handles plans billed every N intervals (for example
// every 3 months).
func MonthlyAmountEvery(amount float64, interval string, every int) float64 {
	if every < 1 {
		every = 1
	}
	var monthly float64
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "month", "monthly":
		monthly = amount
	case "year", "yearly", "annual", "annually":
		monthly = amount / 12
	case "week", "weekly":
		monthly = amount * weeksPerMonth
	case "day", "daily":
		monthly = amount * 30
	default:
		return 0
	}
	return roundCents(monthly / float64(every))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// sumRevenue totals raw points in the given currency; used by adapters to
// derive lifetime revenue. Points in other currencies are skipped rather
// than summed, since amounts are never FX-converted. An empty currency
// matches everything.
func sumRevenue(points []RawRevenuePoint, currency string) float64 {
	var total float64
	for _, p := range points {
		if currency != "" && !strings.EqualFold(p.Currency, currency) {
			continue
		}
		total += p.Amount
	}
	return roundCents(total)
}
