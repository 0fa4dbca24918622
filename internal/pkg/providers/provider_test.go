package providers

import (
	"errors"
	"testing"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
)

func TestMonthlyAmount(t *testing.T) {
	tests := []struct {
		amount   float64
		interval string
		want     float64
	}{
		{amount: 30, interval: "month", want: 30},
		{amount: 120, interval: "year", want: 10},
		{amount: 7, interval: "week", want: 30.31},
		{amount: 1, interval: "day", want: 30},
		{amount: 50, interval: "one_time", want: 0},
		{amount: 50, interval: "", want: 0},
		{amount: 120, interval: "Annually", want: 10},
	}

	for _, tt := range tests {
		if got := MonthlyAmount(tt.amount, tt.interval); got != tt.want {
			t.Fatalf("MonthlyAmount(%v, %q) = %v, want %v", tt.amount, tt.interval, got, tt.want)
		}
	}
}

func TestMonthlyAmountEvery(t *testing.T) {
	// $90 every 3 months is $30/month.
	if got := MonthlyAmountEvery(90, "month", 3); got != 30 {
		t.Fatalf("quarterly plan: got %v, want 30", got)
	}
	// $240 every 2 years is $10/month.
	if got := MonthlyAmountEvery(240, "year", 2); got != 10 {
		t.Fatalf("biennial plan: got %v, want 10", got)
	}
	// Zero or negative frequency falls back to 1.
	if got := MonthlyAmountEvery(30, "month", 0); got != 30 {
		t.Fatalf("zero frequency: got %v, want 30", got)
	}
}

func TestForProvider(t *testing.T) {
	for _, provider := range models.SupportedProviders {
		adapter, err := ForProvider(provider)
		if err != nil {
			t.Fatalf("ForProvider(%q): %v", provider, err)
		}
		if adapter.Provider() != provider {
			t.Fatalf("ForProvider(%q) reports %q", provider, adapter.Provider())
		}
	}

	if _, err := ForProvider("gumroad"); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
	// Lookup is case-insensitive.
	if _, err := ForProvider("Stripe"); err != nil {
		t.Fatalf("expected case-insensitive lookup, got %v", err)
	}
}

func TestSumRevenue(t *testing.T) {
	points := []RawRevenuePoint{
		{Amount: 10.10, Currency: "USD"},
		{Amount: 0.2, Currency: "usd"},
		{Amount: 5, Currency: "USD"},
		{Amount: 99, Currency: "EUR"},
	}
	// Currency matching is case-insensitive; the EUR point must be skipped,
	// never converted and summed in.
	if got := sumRevenue(points, "USD"); got != 15.30 {
		t.Fatalf("sumRevenue = %v, want 15.30", got)
	}
	if got := sumRevenue(points, ""); got != 114.30 {
		t.Fatalf("sumRevenue without filter = %v, want 114.30", got)
	}
	if got := sumRevenue(nil, "USD"); got != 0 {
		t.Fatalf("sumRevenue(nil) = %v, want 0", got)
	}
}

func TestErrorSentinelsAreDistinguishable(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), ErrInvalidCredentials)
	if !errors.Is(wrapped, ErrInvalidCredentials) {
		t.Fatalf("expected wrapped credential error to match sentinel")
	}
	if errors.Is(wrapped, ErrProvider) {
		t.Fatalf("credential error must not match provider sentinel")
	}
}
