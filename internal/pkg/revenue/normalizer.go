package revenue

import (
	"math"
	"sort"
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/app/models"
	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/providers"
)

// DailySnapshots buckets raw provider transactions into one snapshot per UTC
// calendar day, summing amounts and sorting ascending by date. Current-state
// metrics (MRR, ARR, customer count) are attached to the newest bucket only;
// older buckets keep nil pointers so the upsert leaves their stored values
// untouched.
func DailySnapshots(connectionID uint, points []providers.RawRevenuePoint, metrics *providers.CurrentMetrics) []models.RevenueSnapshot {
	type bucket struct {
		revenue  float64
		currency string
	}
	buckets := make(map[time.Time]*bucket)

	for _, p := range points {
		day := p.OccurredAt.UTC().Truncate(24 * time.Hour)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.revenue += p.Amount
		if p.Currency != "" {
			b.currency = p.Currency
		}
	}

	// A connection with no recent transactions still gets one bucket for
	// today so the current metrics have somewhere to live.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if len(buckets) == 0 && metrics != nil {
		buckets[today] = &bucket{currency: metrics.Currency}
	}

	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	snapshots := make([]models.RevenueSnapshot, 0, len(days))
	for _, day := range days {
		b := buckets[day]
		currency := b.currency
		if currency == "" && metrics != nil {
			currency = metrics.Currency
		}
		snapshots = append(snapshots, models.RevenueSnapshot{
			ConnectionID: connectionID,
			SnapshotDate: day,
			Revenue:      roundCents(b.revenue),
			Currency:     currency,
		})
	}

	if metrics != nil && len(snapshots) > 0 {
		latest := &snapshots[len(snapshots)-1]
		mrr := roundCents(metrics.MRR)
		arr := roundCents(metrics.ARR)
		total := roundCents(metrics.TotalRevenue)
		count := metrics.CustomerCount
		latest.MRR = &mrr
		latest.ARR = &arr
		latest.TotalRevenue = &total
		latest.CustomerCount = &count
	}
	return snapshots
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
