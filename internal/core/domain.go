package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type (
	// ServiceCallRecord is one row of the dashboard dataset. String fields that
	// arrive as JSON null decode to "".
	ServiceCallRecord struct {
		ServiceCallID int64     `json:"serviceCallID"`
		EntryTime     EntryTime `json:"entryTime"`

		Title         string `json:"title"`
		Description   string `json:"description"`
		RequestUser   string `json:"requestUser"`
		CallbackPhone string `json:"callbackPhone"`
		Location      string `json:"location"`
		ComputerName  string `json:"computerName"`

		MainCategoryName string `json:"mainCategoryName"`
		SubCategory1Name string `json:"subCategory1Name"`
		SubCategory2Name string `json:"subCategory2Name"`
		SubCategory3Name string `json:"subCategory3Name"`

		StatusName   string `json:"statusName"`
		PriorityName string `json:"priorityName"`

		DepartmentInChargeName string `json:"departmentInChargeName"`
		TeamInChargeName       string `json:"teamInChargeName"`
		UserInChargeName       string `json:"userInChargeName"`

		ServiceRequestTypeName string `json:"serviceRequestTypeName"`
	}

	// EntryTime is a nullable, leniently parsed timestamp. Raw keeps the value
	// exactly as received so it can be re-resolved in another location.
	EntryTime struct {
		Time  time.Time
		Valid bool
		Raw   string
	}

	// DateRange bounds are independently optional.
	DateRange struct {
		Start *time.Time `json:"start"`
		End   *time.Time `json:"end"`
	}

	// FilterState is the set of user selections the dashboard is evaluated under.
	FilterState struct {
		DateRange      DateRange `json:"dateRange"`
		MainCategories []string  `json:"mainCategoryNames"`
		SubCategory1   []string  `json:"subCategory1Names"`
	}
)

var entryTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseEntryTime parses raw leniently. Values without a zone are read in loc.
// Anything that cannot be parsed yields an invalid EntryTime rather than an error.
func ParseEntryTime(raw string, loc *time.Location) EntryTime {
	if loc == nil {
		loc = time.Local
	}
	et := EntryTime{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return et
	}
	for _, layout := range entryTimeLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, loc)
		}
		if err == nil {
			et.Time = t
			et.Valid = true
			return et
		}
	}
	return et
}

// NewEntryTime wraps an already known instant.
func NewEntryTime(t time.Time) EntryTime {
	return EntryTime{Time: t, Valid: true}
}

func (e *EntryTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*e = EntryTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Non-string payloads (numbers, objects) are treated as unparseable.
		*e = EntryTime{Raw: string(data)}
		return nil
	}
	*e = ParseEntryTime(s, time.Local)
	return nil
}

func (e EntryTime) MarshalJSON() ([]byte, error) {
	switch {
	case e.Raw != "":
		return json.Marshal(e.Raw)
	case e.Valid:
		return json.Marshal(e.Time.Format(time.RFC3339Nano))
	default:
		return []byte("null"), nil
	}
}

// ResolveEntryTimes re-parses every record's raw entry time in loc.
// Records built in code (no Raw) are left untouched.
func ResolveEntryTimes(records []ServiceCallRecord, loc *time.Location) {
	for i := range records {
		if records[i].EntryTime.Raw == "" {
			continue
		}
		records[i].EntryTime = ParseEntryTime(records[i].EntryTime.Raw, loc)
	}
}

// Norm trims surrounding whitespace; every category comparison goes through it.
func Norm(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeSelection trims values, drops empties and duplicates, keeping the
// first occurrence order. The result is never nil.
func NormalizeSelection(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = Norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Set is a string membership set.
type Set map[string]struct{}

func NewSet(values []string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[Norm(v)] = struct{}{}
	}
	return s
}

func (s Set) Has(v string) bool {
	_, ok := s[Norm(v)]
	return ok
}

// HasBounds reports whether either bound is set.
func (r DateRange) HasBounds() bool {
	return r.Start != nil || r.End != nil
}

// Contains applies the inclusive range with End extended to the end of its day.
func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(EndOfDay(*r.End)) {
		return false
	}
	return true
}

// EndOfDay returns the last nanosecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// DefaultFilterState is the window installed when a dataset first arrives:
// from the same time of day windowDays days ago up to now, no category
// selections.
func DefaultFilterState(now time.Time, windowDays int) FilterState {
	start := now.AddDate(0, 0, -windowDays)
	end := now
	return FilterState{
		DateRange:      DateRange{Start: &start, End: &end},
		MainCategories: []string{},
		SubCategory1:   []string{},
	}
}

// Normalized returns a deep copy with both selections normalized.
func (f FilterState) Normalized() FilterState {
	out := FilterState{
		MainCategories: NormalizeSelection(f.MainCategories),
		SubCategory1:   NormalizeSelection(f.SubCategory1),
	}
	if f.DateRange.Start != nil {
		s := *f.DateRange.Start
		out.DateRange.Start = &s
	}
	if f.DateRange.End != nil {
		e := *f.DateRange.End
		out.DateRange.End = &e
	}
	return out
}

// IsEmpty reports whether no filter of any kind is active.
func (f FilterState) IsEmpty() bool {
	return !f.DateRange.HasBounds() && len(f.MainCategories) == 0 && len(f.SubCategory1) == 0
}
