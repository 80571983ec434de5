package dashboard

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"servicecalls/internal/core"
)

func TestStatusSummary(t *testing.T) {
	records := []core.ServiceCallRecord{
		rec(1, "A", "X", "Open", nil),
		rec(2, "A", "Y", "Closed", nil),
		rec(3, "B", "Z", " Open ", nil),
	}
	got := StatusSummary(records)
	want := []StatusCount{
		{Status: "Open", Count: 2, Percent: 67},
		{Status: "Closed", Count: 1, Percent: 33},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestStatusSummary_SentinelAndTies(t *testing.T) {
	records := []core.ServiceCallRecord{
		rec(1, "", "", "Pending", nil),
		rec(2, "", "", "", nil),
		rec(3, "", "", "Closed", nil),
		rec(4, "", "", "  ", nil),
		rec(5, "", "", "Closed", nil),
		rec(6, "", "", "Pending", nil),
	}
	got := StatusSummary(records)
	var order []string
	for _, s := range got {
		order = append(order, s.Status)
	}
	// All three groups have two records; first-seen order wins.
	if want := []string{"Pending", NoStatusLabel, "Closed"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestStatusSummary_Empty(t *testing.T) {
	got := StatusSummary(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil summary, got %#v", got)
	}
}

func TestStatusSummary_PercentDriftBounded(t *testing.T) {
	for n := 1; n <= 12; n++ {
		t.Run(fmt.Sprintf("groups_%d", n), func(t *testing.T) {
			var records []core.ServiceCallRecord
			for g := 0; g < n; g++ {
				for k := 0; k <= g%3; k++ {
					records = append(records, rec(int64(len(records)), "", "", fmt.Sprintf("S%d", g), nil))
				}
			}
			summary := StatusSummary(records)
			sum := 0
			for _, s := range summary {
				exact := float64(s.Count) / float64(len(records)) * 100
				if d := float64(s.Percent) - exact; d > 0.5 || d < -0.5 {
					t.Errorf("group %s percent %d too far from %.2f", s.Status, s.Percent, exact)
				}
				sum += s.Percent
			}
			if sum < 100-len(summary) || sum > 100+len(summary) {
				t.Errorf("sum %d drifts more than one point per group (%d groups)", sum, len(summary))
			}
		})
	}
}

func TestCategoryOnlyFilter(t *testing.T) {
	records := []core.ServiceCallRecord{
		rec(1, "A", "X", "", at(2020, 1, 1, 0)),
		rec(2, "A", "Y", "", nil),
		rec(3, "B", "X", "", at(2025, 1, 1, 0)),
	}
	tests := []struct {
		name  string
		mains []string
		subs  []string
		want  []int64
	}{
		{"no selection", nil, nil, []int64{1, 2, 3}},
		{"main only", []string{"A"}, nil, []int64{1, 2}},
		{"sub only", nil, []string{"X"}, []int64{1, 3}},
		{"both", []string{"A"}, []string{"X"}, []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(CategoryOnlyFilter(records, tt.mains, tt.subs)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeKPI(t *testing.T) {
	loc := time.FixedZone("IDT", 3*60*60)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, loc)
	mk := func(id int64, tm time.Time) core.ServiceCallRecord {
		return core.ServiceCallRecord{ServiceCallID: id, EntryTime: core.NewEntryTime(tm)}
	}
	records := []core.ServiceCallRecord{
		mk(1, time.Date(2025, 6, 15, 0, 30, 0, 0, loc)),
		// 22:30 UTC on the 14th is already the 15th in now's location.
		mk(2, time.Date(2025, 6, 14, 22, 30, 0, 0, time.UTC)),
		mk(3, time.Date(2025, 6, 1, 8, 0, 0, 0, loc)),
		mk(4, time.Date(2024, 6, 15, 8, 0, 0, 0, loc)),
		mk(5, time.Date(2025, 5, 31, 8, 0, 0, 0, loc)),
		{ServiceCallID: 6},
	}
	got := ComputeKPI(records, 42, now)
	want := KPI{Total: 42, Today: 2, Month: 3, TodayGaugeMax: 10, MonthGaugeMax: 10}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGaugeCeiling(t *testing.T) {
	tests := []struct {
		v, want int
	}{
		{0, 10},
		{7, 10},
		{10, 10},
		{11, 20},
		{45, 60},
		{50, 70},
		{51, 75},
		{100, 125},
		// ceil(120*1.2/25)*25 = ceil(5.76)*25
		{120, 150},
		{125, 150},
		{200, 250},
		{201, 300},
		{1000, 1200},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("v_%d", tt.v), func(t *testing.T) {
			if got := GaugeCeiling(tt.v); got != tt.want {
				t.Errorf("GaugeCeiling(%d) = %d, want %d", tt.v, got, tt.want)
			}
		})
	}
}
