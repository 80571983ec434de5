package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"servicecalls/internal/core"
)

// columnSetters maps a normalized header to the record field it fills.
// Headers are the JSON field names of the API, compared case-insensitively
// with spaces and underscores ignored.
var columnSetters = map[string]func(*core.ServiceCallRecord, string){
	"title":                  func(r *core.ServiceCallRecord, v string) { r.Title = v },
	"description":            func(r *core.ServiceCallRecord, v string) { r.Description = v },
	"requestuser":            func(r *core.ServiceCallRecord, v string) { r.RequestUser = v },
	"callbackphone":          func(r *core.ServiceCallRecord, v string) { r.CallbackPhone = v },
	"location":               func(r *core.ServiceCallRecord, v string) { r.Location = v },
	"computername":           func(r *core.ServiceCallRecord, v string) { r.ComputerName = v },
	"maincategoryname":       func(r *core.ServiceCallRecord, v string) { r.MainCategoryName = v },
	"subcategory1name":       func(r *core.ServiceCallRecord, v string) { r.SubCategory1Name = v },
	"subcategory2name":       func(r *core.ServiceCallRecord, v string) { r.SubCategory2Name = v },
	"subcategory3name":       func(r *core.ServiceCallRecord, v string) { r.SubCategory3Name = v },
	"statusname":             func(r *core.ServiceCallRecord, v string) { r.StatusName = v },
	"priorityname":           func(r *core.ServiceCallRecord, v string) { r.PriorityName = v },
	"departmentinchargename": func(r *core.ServiceCallRecord, v string) { r.DepartmentInChargeName = v },
	"teaminchargename":       func(r *core.ServiceCallRecord, v string) { r.TeamInChargeName = v },
	"userinchargename":       func(r *core.ServiceCallRecord, v string) { r.UserInChargeName = v },
	"servicerequesttypename": func(r *core.ServiceCallRecord, v string) { r.ServiceRequestTypeName = v },
}

// parseRecords converts a values matrix (as returned by the Sheets API) into
// records. The first row is the header; serviceCallID and entryTime columns
// are required. Blank rows are skipped, rows with an unreadable ID too.
func parseRecords(values [][]interface{}, loc *time.Location) ([]core.ServiceCallRecord, int, error) {
	if len(values) == 0 {
		return []core.ServiceCallRecord{}, 0, nil
	}
	headers := toStrings(values[0])
	colID := indexOf(headers, "serviceCallID")
	colTime := indexOf(headers, "entryTime")
	if colID == -1 || colTime == -1 {
		var missing []string
		if colID == -1 {
			missing = append(missing, "serviceCallID")
		}
		if colTime == -1 {
			missing = append(missing, "entryTime")
		}
		return nil, 0, fmt.Errorf("unexpected service calls header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	setters := make(map[int]func(*core.ServiceCallRecord, string))
	for i, h := range headers {
		if set, ok := columnSetters[normalizeHeader(h)]; ok {
			setters[i] = set
		}
	}

	out := make([]core.ServiceCallRecord, 0, len(values)-1)
	skipped := 0
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}
		id, ok := parseID(safeGet(row, colID))
		if !ok {
			skipped++
			continue
		}
		r := core.ServiceCallRecord{ServiceCallID: id}
		if raw := safeGet(row, colTime); raw != "" {
			r.EntryTime = core.ParseEntryTime(raw, loc)
		}
		for col, set := range setters {
			set(&r, safeGet(row, col))
		}
		out = append(out, r)
	}
	return out, skipped, nil
}

func parseID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	// Numeric cells may be rendered as "1234.0".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "")
	return strings.ReplaceAll(h, "_", "")
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	target = normalizeHeader(target)
	for i, v := range arr {
		if normalizeHeader(v) == target {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
