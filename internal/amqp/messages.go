package amqp

import (
	"encoding/json"
	"time"

	"servicecalls/internal/dashboard"
)

// KPISnapshotMessage carries the KPI block of one category focus, as the
// dashboard would show it with no date range applied.
type KPISnapshotMessage struct {
	Focus          string                  `json:"focus"`
	MainCategories []string                `json:"mainCategoryNames"`
	SubCategories  []string                `json:"subCategory1Names"`
	RecordCount    int                     `json:"recordCount"`
	KPI            dashboard.KPI           `json:"kpi"`
	StatusSummary  []dashboard.StatusCount `json:"statusSummary"`
	ComputedAt     time.Time               `json:"computedAt"`
}

func NewKPISnapshotMessage(focus string, mains, subs []string, records int, kpi dashboard.KPI, status []dashboard.StatusCount, at time.Time) *KPISnapshotMessage {
	return &KPISnapshotMessage{
		Focus:          focus,
		MainCategories: mains,
		SubCategories:  subs,
		RecordCount:    records,
		KPI:            kpi,
		StatusSummary:  status,
		ComputedAt:     at,
	}
}

func (m *KPISnapshotMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func KPISnapshotMessageFromJSON(data []byte) (*KPISnapshotMessage, error) {
	var msg KPISnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
