package source

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"servicecalls/internal/core"
)

// DecodeRecords reads a flat JSON array of service calls. Entry times without
// a zone are resolved in loc.
func DecodeRecords(r io.Reader, loc *time.Location) ([]core.ServiceCallRecord, error) {
	var records []core.ServiceCallRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode service calls: %w", err)
	}
	if records == nil {
		records = []core.ServiceCallRecord{}
	}
	if loc != nil {
		core.ResolveEntryTimes(records, loc)
	}
	return records, nil
}
