package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"servicecalls/internal/core"
)

// maxBodyBytes bounds a filter request body.
const maxBodyBytes = 64 << 10

const dateLayout = "2006-01-02"

// FilterRequest is the filter form as posted by the dashboard. In a PATCH an
// absent field leaves the filter unchanged and "" clears a date bound.
type FilterRequest struct {
	StartDate         *string   `json:"startDate"`
	EndDate           *string   `json:"endDate"`
	MainCategoryNames *[]string `json:"mainCategoryNames"`
	SubCategory1Names *[]string `json:"subCategory1Names"`
}

// ErrBadRequest marks failures the client can fix.
var ErrBadRequest = errors.New("bad request")

// DecodeFilterRequest reads one JSON object from the body. An empty body is
// an empty request.
func DecodeFilterRequest(w http.ResponseWriter, r *http.Request) (FilterRequest, error) {
	var req FilterRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return FilterRequest{}, nil
		}
		return FilterRequest{}, fmt.Errorf("%w: invalid JSON body: %v", ErrBadRequest, err)
	}
	if dec.More() {
		return FilterRequest{}, fmt.Errorf("%w: trailing data after JSON body", ErrBadRequest)
	}
	return req, nil
}

// FilterState converts a full replacement request. Missing fields are empty.
func (req FilterRequest) FilterState(loc *time.Location) (core.FilterState, error) {
	var state core.FilterState
	if err := req.applyTo(&state, loc); err != nil {
		return core.FilterState{}, err
	}
	return state, nil
}

// Patch returns a change function touching only the fields present in req.
// Dates are parsed up front so a bad date fails before any recompute.
func (req FilterRequest) Patch(loc *time.Location) (func(*core.FilterState), error) {
	var parsed core.FilterState
	if err := req.applyTo(&parsed, loc); err != nil {
		return nil, err
	}
	return func(f *core.FilterState) {
		if req.StartDate != nil {
			f.DateRange.Start = parsed.DateRange.Start
		}
		if req.EndDate != nil {
			f.DateRange.End = parsed.DateRange.End
		}
		if req.MainCategoryNames != nil {
			f.MainCategories = parsed.MainCategories
		}
		if req.SubCategory1Names != nil {
			f.SubCategory1 = parsed.SubCategory1
		}
	}, nil
}

func (req FilterRequest) applyTo(state *core.FilterState, loc *time.Location) error {
	var err error
	if req.StartDate != nil {
		if state.DateRange.Start, err = ParseFilterDate(*req.StartDate, loc); err != nil {
			return fmt.Errorf("%w: startDate: %v", ErrBadRequest, err)
		}
	}
	if req.EndDate != nil {
		if state.DateRange.End, err = ParseFilterDate(*req.EndDate, loc); err != nil {
			return fmt.Errorf("%w: endDate: %v", ErrBadRequest, err)
		}
	}
	if req.MainCategoryNames != nil {
		state.MainCategories = sanitizeSelection(*req.MainCategoryNames)
	}
	if req.SubCategory1Names != nil {
		state.SubCategory1 = sanitizeSelection(*req.SubCategory1Names)
	}
	return nil
}

// ParseFilterDate accepts a calendar date, read as midnight in loc, or an
// RFC 3339 timestamp. Blank means no bound.
func ParseFilterDate(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	t = t.In(loc)
	return &t, nil
}
