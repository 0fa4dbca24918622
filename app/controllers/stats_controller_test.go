package controllers

import (
	"testing"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/app/repository"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestAggregateLatestSnapshotsScopesToPrimaryCurrency(t *testing.T) {
	latests := []models.RevenueSnapshot{
		{Currency: "USD", MRR: fptr(100), ARR: fptr(1200), TotalRevenue: fptr(5000), CustomerCount: iptr(10)},
		{Currency: "usd", MRR: fptr(50), ARR: fptr(600), TotalRevenue: fptr(2000), CustomerCount: iptr(5)},
		// A EUR connection must not be summed into the USD aggregates.
		{Currency: "EUR", MRR: fptr(999), ARR: fptr(999), TotalRevenue: fptr(999), CustomerCount: iptr(99)},
	}

	stats := &PublicStats{}
	aggregateLatestSnapshots(stats, latests)

	if stats.Currency != "USD" {
		t.Fatalf("primary currency = %q, want USD", stats.Currency)
	}
	if stats.MRR != 150 || stats.ARR != 1800 {
		t.Fatalf("MRR/ARR = %v/%v, want 150/1800", stats.MRR, stats.ARR)
	}
	if stats.TotalRevenue != 7000 {
		t.Fatalf("TotalRevenue = %v, want 7000 (lifetime, USD only)", stats.TotalRevenue)
	}
	if stats.CustomerCount != 15 {
		t.Fatalf("CustomerCount = %d, want 15", stats.CustomerCount)
	}
}

func TestAggregateLatestSnapshotsEmpty(t *testing.T) {
	stats := &PublicStats{}
	aggregateLatestSnapshots(stats, nil)
	if stats.MRR != 0 || stats.TotalRevenue != 0 || stats.Currency != "" {
		t.Fatalf("empty aggregation must stay zero: %+v", stats)
	}
}

func TestMonthOverMonthGrowth(t *testing.T) {
	chart := []repository.MonthlyRevenue{
		{Month: "2026-05-01", Revenue: 80, Currency: "USD"},
		{Month: "2026-06-01", Revenue: 100, Currency: "USD"},
		// EUR rows interleave with the USD series and must not shift the
		// comparison window.
		{Month: "2026-07-01", Revenue: 500, Currency: "EUR"},
		{Month: "2026-07-01", Revenue: 125, Currency: "USD"},
	}

	rate := monthOverMonthGrowth(chart, "USD")
	if rate == nil || *rate != 25 {
		t.Fatalf("growth = %v, want 25", rate)
	}

	if got := monthOverMonthGrowth(chart[:2], "EUR"); got != nil {
		t.Fatalf("single-currency mismatch must yield nil, got %v", *got)
	}
	if got := monthOverMonthGrowth(chart[3:], "USD"); got != nil {
		t.Fatalf("fewer than two months must yield nil, got %v", *got)
	}
	zeroBase := []repository.MonthlyRevenue{
		{Month: "2026-06-01", Revenue: 0, Currency: "USD"},
		{Month: "2026-07-01", Revenue: 50, Currency: "USD"},
	}
	if got := monthOverMonthGrowth(zeroBase, "USD"); got != nil {
		t.Fatalf("zero base month must yield nil, got %v", *got)
	}
}
