package revenue

import (
	"testing"
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/providers"
)

func TestDailySnapshotsBucketsByDay(t *testing.T) {
	day1 := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 2, 23, 59, 59, 0, time.UTC)

	points := []providers.RawRevenuePoint{
		{OccurredAt: day2, Amount: 5, Currency: "USD"},
		{OccurredAt: day1, Amount: 19.99, Currency: "USD"},
		{OccurredAt: day1.Add(4 * time.Hour), Amount: 10.01, Currency: "USD"},
	}

	snapshots := DailySnapshots(7, points, nil)
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if !snapshots[0].SnapshotDate.Before(snapshots[1].SnapshotDate) {
		t.Fatalf("snapshots must be ascending by date")
	}
	if snapshots[0].Revenue != 30 {
		t.Fatalf("day 1 revenue = %v, want 30", snapshots[0].Revenue)
	}
	if snapshots[1].Revenue != 5 {
		t.Fatalf("day 2 revenue = %v, want 5", snapshots[1].Revenue)
	}
	for _, s := range snapshots {
		if s.ConnectionID != 7 {
			t.Fatalf("connection id not carried through")
		}
		if s.MRR != nil || s.CustomerCount != nil {
			t.Fatalf("metrics must stay nil without current metrics")
		}
	}
}

func TestDailySnapshotsAttachesMetricsToLatestOnly(t *testing.T) {
	day1 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	points := []providers.RawRevenuePoint{
		{OccurredAt: day1, Amount: 100, Currency: "USD"},
		{OccurredAt: day2, Amount: 50, Currency: "USD"},
	}
	metrics := &providers.CurrentMetrics{MRR: 40.31, ARR: 483.72, TotalRevenue: 150, CustomerCount: 12, Currency: "USD"}

	snapshots := DailySnapshots(1, points, metrics)
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}

	older, latest := snapshots[0], snapshots[1]
	if older.MRR != nil || older.ARR != nil || older.TotalRevenue != nil || older.CustomerCount != nil {
		t.Fatalf("older bucket must not carry current metrics")
	}
	if latest.MRR == nil || *latest.MRR != 40.31 {
		t.Fatalf("latest bucket MRR = %v, want 40.31", latest.MRR)
	}
	if latest.ARR == nil || *latest.ARR != 483.72 {
		t.Fatalf("latest bucket ARR = %v, want 483.72", latest.ARR)
	}
	if latest.TotalRevenue == nil || *latest.TotalRevenue != 150 {
		t.Fatalf("latest bucket total revenue = %v, want 150", latest.TotalRevenue)
	}
	if latest.CustomerCount == nil || *latest.CustomerCount != 12 {
		t.Fatalf("latest bucket customer count = %v, want 12", latest.CustomerCount)
	}
}

func TestDailySnapshotsEmptyPointsStillCarriesMetrics(t *testing.T) {
	metrics := &providers.CurrentMetrics{MRR: 100, ARR: 1200, CustomerCount: 3, Currency: "EUR"}

	snapshots := DailySnapshots(2, nil, metrics)
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	s := snapshots[0]
	if s.Revenue != 0 {
		t.Fatalf("expected zero revenue, got %v", s.Revenue)
	}
	if s.Currency != "EUR" {
		t.Fatalf("expected metrics currency fallback, got %q", s.Currency)
	}
	if s.MRR == nil || *s.MRR != 100 {
		t.Fatalf("expected metrics on the only bucket")
	}

	if got := DailySnapshots(2, nil, nil); len(got) != 0 {
		t.Fatalf("no points and no metrics must yield no snapshots, got %d", len(got))
	}
}
