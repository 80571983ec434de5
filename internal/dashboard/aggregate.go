package dashboard

import (
	"math"
	"time"

	"servicecalls/internal/core"
)

// NoStatusLabel groups records whose status is empty.
const NoStatusLabel = "No status"

type (
	StatusCount struct {
		Status  string `json:"status"`
		Count   int    `json:"count"`
		Percent int    `json:"percent"`
	}

	// KPI holds the headline counters. Total follows every filter; Today and
	// Month follow the category selections only and ignore the date range.
	KPI struct {
		Total         int `json:"total"`
		Today         int `json:"today"`
		Month         int `json:"month"`
		TodayGaugeMax int `json:"todayGaugeMax"`
		MonthGaugeMax int `json:"monthGaugeMax"`
	}
)

// StatusSummary counts records per status, largest first. Equal counts keep
// the order in which the statuses were first seen. Percentages are rounded
// independently, so their sum may drift from 100.
func StatusSummary(records []core.ServiceCallRecord) []StatusCount {
	groups := GroupCounts(records, func(r core.ServiceCallRecord) string { return r.StatusName }, NoStatusLabel)
	sortByCountDesc(groups)

	total := len(records)
	if total < 1 {
		total = 1
	}
	out := make([]StatusCount, 0, len(groups))
	for _, g := range groups {
		out = append(out, StatusCount{
			Status:  g.Label,
			Count:   g.Count,
			Percent: int(math.Round(float64(g.Count) / float64(total) * 100)),
		})
	}
	return out
}

// CategoryOnlyFilter applies the main and subcategory-1 selections to records
// and ignores the date range entirely.
func CategoryOnlyFilter(records []core.ServiceCallRecord, mains, sub1 []string) []core.ServiceCallRecord {
	mainSet := core.NewSet(mains)
	subSet := core.NewSet(sub1)
	out := make([]core.ServiceCallRecord, 0, len(records))
	for _, r := range records {
		if len(mainSet) > 0 && !mainSet.Has(r.MainCategoryName) {
			continue
		}
		if len(subSet) > 0 && !subSet.Has(r.SubCategory1Name) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// ComputeKPI counts categoryOnly records entered on now's calendar day and in
// now's calendar month, both judged in now's location. total is the size of
// the fully filtered set.
func ComputeKPI(categoryOnly []core.ServiceCallRecord, total int, now time.Time) KPI {
	var today, month int
	loc := now.Location()
	for _, r := range categoryOnly {
		if !r.EntryTime.Valid {
			continue
		}
		t := r.EntryTime.Time.In(loc)
		if sameDay(t, now) {
			today++
		}
		if sameMonth(t, now) {
			month++
		}
	}
	return KPI{
		Total:         total,
		Today:         today,
		Month:         month,
		TodayGaugeMax: GaugeCeiling(today),
		MonthGaugeMax: GaugeCeiling(month),
	}
}

// GaugeCeiling is the display bound for a gauge showing v. It is a rendering
// hint and never a data value.
func GaugeCeiling(v int) int {
	f := float64(v)
	switch {
	case v <= 10:
		return 10
	case v <= 50:
		return int(math.Ceil(f*1.3/10)) * 10
	case v <= 200:
		return int(math.Ceil(f*1.2/25)) * 25
	default:
		return int(math.Ceil(f*1.15/100)) * 100
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
