package dashboard

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"servicecalls/internal/core"
)

// DateMainFilter keeps records inside the date range whose main category is
// selected. An empty selection matches every category. When any date bound is
// set, records without a valid entry time are dropped.
func DateMainFilter(records []core.ServiceCallRecord, dr core.DateRange, mains []string) []core.ServiceCallRecord {
	mainSet := core.NewSet(mains)
	bounded := dr.HasBounds()

	out := make([]core.ServiceCallRecord, 0, len(records))
	for _, r := range records {
		if bounded {
			if !r.EntryTime.Valid || !dr.Contains(r.EntryTime.Time) {
				continue
			}
		}
		if len(mainSet) > 0 && !mainSet.Has(r.MainCategoryName) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SubCategory1Options lists the distinct non-empty subcategory-1 names of
// records, sorted with the collation rules of locale.
func SubCategory1Options(records []core.ServiceCallRecord, locale language.Tag) []string {
	return distinctSorted(records, func(r core.ServiceCallRecord) string { return r.SubCategory1Name }, locale)
}

// MainCategoryOptions lists the distinct non-empty main category names of records.
func MainCategoryOptions(records []core.ServiceCallRecord, locale language.Tag) []string {
	return distinctSorted(records, func(r core.ServiceCallRecord) string { return r.MainCategoryName }, locale)
}

// ReconcileSelection narrows selected to the values present in valid, keeping
// the selection order. A stale value is dropped, never reported.
func ReconcileSelection(selected, valid []string) []string {
	validSet := core.NewSet(valid)
	out := make([]string, 0, len(selected))
	for _, s := range core.NormalizeSelection(selected) {
		if validSet.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// FullyFilter restricts records to the selected subcategory-1 names. An empty
// selection returns records unchanged.
func FullyFilter(records []core.ServiceCallRecord, sub1 []string) []core.ServiceCallRecord {
	if len(sub1) == 0 {
		return records
	}
	subSet := core.NewSet(sub1)
	out := make([]core.ServiceCallRecord, 0, len(records))
	for _, r := range records {
		if subSet.Has(r.SubCategory1Name) {
			out = append(out, r)
		}
	}
	return out
}

func distinctSorted(records []core.ServiceCallRecord, key func(core.ServiceCallRecord) string, locale language.Tag) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range records {
		v := core.Norm(key(r))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	// Collators keep internal buffers, so one is built per call.
	collate.New(locale).SortStrings(out)
	return out
}
