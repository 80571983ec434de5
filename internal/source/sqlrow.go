package source

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"servicecalls/internal/core"
)

// RecordColumns is the column order shared by the SQL-backed sources.
var RecordColumns = []string{
	"service_call_id", "entry_time",
	"title", "description", "request_user", "callback_phone", "location", "computer_name",
	"main_category_name", "sub_category1_name", "sub_category2_name", "sub_category3_name",
	"status_name", "priority_name",
	"department_in_charge_name", "team_in_charge_name", "user_in_charge_name",
	"service_request_type_name",
}

// SelectRecordsSQL returns the query reading every record from table.
func SelectRecordsSQL(table string) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY service_call_id", strings.Join(RecordColumns, ", "), table)
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanRecord reads one row in RecordColumns order. NULL strings become "".
// entry_time may come back as a time, a string or bytes depending on the driver.
func ScanRecord(s Scanner, loc *time.Location) (core.ServiceCallRecord, error) {
	var (
		r       core.ServiceCallRecord
		entry   any
		strs    [16]sql.NullString
		targets = []any{&r.ServiceCallID, &entry}
	)
	for i := range strs {
		targets = append(targets, &strs[i])
	}
	if err := s.Scan(targets...); err != nil {
		return core.ServiceCallRecord{}, err
	}

	fields := []*string{
		&r.Title, &r.Description, &r.RequestUser, &r.CallbackPhone, &r.Location, &r.ComputerName,
		&r.MainCategoryName, &r.SubCategory1Name, &r.SubCategory2Name, &r.SubCategory3Name,
		&r.StatusName, &r.PriorityName,
		&r.DepartmentInChargeName, &r.TeamInChargeName, &r.UserInChargeName,
		&r.ServiceRequestTypeName,
	}
	for i, f := range fields {
		*f = strs[i].String
	}

	switch v := entry.(type) {
	case time.Time:
		r.EntryTime = core.NewEntryTime(v)
	case string:
		r.EntryTime = core.ParseEntryTime(v, loc)
	case []byte:
		r.EntryTime = core.ParseEntryTime(string(v), loc)
	}
	return r, nil
}

// RecordArgs returns the values of r in RecordColumns order, for inserts.
func RecordArgs(r core.ServiceCallRecord) []any {
	var entry any
	switch {
	case r.EntryTime.Valid:
		entry = r.EntryTime.Time.UTC().Format(time.RFC3339Nano)
	case r.EntryTime.Raw != "":
		entry = r.EntryTime.Raw
	}
	return []any{
		r.ServiceCallID, entry,
		nullable(r.Title), nullable(r.Description), nullable(r.RequestUser), nullable(r.CallbackPhone),
		nullable(r.Location), nullable(r.ComputerName),
		nullable(r.MainCategoryName), nullable(r.SubCategory1Name), nullable(r.SubCategory2Name), nullable(r.SubCategory3Name),
		nullable(r.StatusName), nullable(r.PriorityName),
		nullable(r.DepartmentInChargeName), nullable(r.TeamInChargeName), nullable(r.UserInChargeName),
		nullable(r.ServiceRequestTypeName),
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
