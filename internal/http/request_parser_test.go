package http

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"servicecalls/internal/core"
)

var testLoc = time.FixedZone("IDT", 3*60*60)

func decode(t *testing.T, body string) (FilterRequest, error) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	return DecodeFilterRequest(httptest.NewRecorder(), r)
}

func TestParseFilterDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *time.Time
		wantErr bool
	}{
		{"blank", "  ", nil, false},
		{"calendar date", "2025-06-01", ptr(time.Date(2025, 6, 1, 0, 0, 0, 0, testLoc)), false},
		{"rfc3339", "2025-06-01T10:00:00Z", ptr(time.Date(2025, 6, 1, 13, 0, 0, 0, testLoc)), false},
		{"garbage", "01/06/2025", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilterDate(tt.in, testLoc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("got %v, want nil", got)
				}
				return
			}
			if got == nil || !got.Equal(*tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterRequest_FilterState(t *testing.T) {
	req, err := decode(t, `{"startDate":"2025-06-01","endDate":"","mainCategoryNames":["Hardware"," Network\u0007 "],"subCategory1Names":null}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	state, err := req.FilterState(testLoc)
	if err != nil {
		t.Fatalf("FilterState: %v", err)
	}
	if state.DateRange.Start == nil || state.DateRange.Start.Day() != 1 {
		t.Errorf("start = %v", state.DateRange.Start)
	}
	if state.DateRange.End != nil {
		t.Errorf("blank end should be unbounded, got %v", state.DateRange.End)
	}
	if want := []string{"Hardware", "Network"}; !reflect.DeepEqual(state.MainCategories, want) {
		t.Errorf("mains = %q, want %q", state.MainCategories, want)
	}
	if state.SubCategory1 != nil {
		t.Errorf("null selection should stay empty, got %v", state.SubCategory1)
	}
}

func TestFilterRequest_Patch(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc)
	current := core.FilterState{
		DateRange:      core.DateRange{Start: &start},
		MainCategories: []string{"Hardware"},
		SubCategory1:   []string{"Printer"},
	}

	req, err := decode(t, `{"subCategory1Names":["Laptop"],"startDate":""}`)
	if err != nil {
		t.Fatal(err)
	}
	change, err := req.Patch(testLoc)
	if err != nil {
		t.Fatal(err)
	}
	change(&current)

	if current.DateRange.Start != nil {
		t.Errorf(`"" should clear the start date`)
	}
	if !reflect.DeepEqual(current.MainCategories, []string{"Hardware"}) {
		t.Errorf("absent field changed: %v", current.MainCategories)
	}
	if !reflect.DeepEqual(current.SubCategory1, []string{"Laptop"}) {
		t.Errorf("sub1 = %v", current.SubCategory1)
	}
}

func TestDecodeFilterRequest_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `startDate=2025`},
		{"wrong type", `{"mainCategoryNames":"Hardware"}`},
		{"trailing data", `{} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decode(t, tt.body); err == nil {
				t.Error("expected error")
			}
		})
	}

	req, err := decode(t, "")
	if err != nil {
		t.Fatalf("empty body: %v", err)
	}
	if req != (FilterRequest{}) {
		t.Errorf("empty body should decode to an empty request")
	}

	req, _ = decode(t, `{"endDate":"June"}`)
	if _, err := req.FilterState(testLoc); err == nil {
		t.Error("bad endDate should fail")
	}
	if _, err := req.Patch(testLoc); err == nil {
		t.Error("bad endDate should fail for patches too")
	}
}

func ptr(t time.Time) *time.Time { return &t }
