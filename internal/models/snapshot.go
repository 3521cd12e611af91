package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const snapshotTimeLayout = time.RFC3339Nano

// ReportSnapshot is a stored copy of a computed report, one per channel and
// requested video count.
type ReportSnapshot struct {
	ID           int64           `json:"id"`
	ChannelID    string          `json:"channel_id"`
	ChannelTitle string          `json:"channel_title"`
	Requested    int             `json:"requested"`
	CreateDate   time.Time       `json:"create_date"`
	UpdateDate   time.Time       `json:"update_date"`
	JSONResponse json.RawMessage `json:"json_response"`
}

// NewReportSnapshot encodes rep for storage.
func NewReportSnapshot(rep *Report, requested int, now time.Time) (*ReportSnapshot, error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return &ReportSnapshot{
		ChannelID:    rep.Channel.ID,
		ChannelTitle: rep.Channel.Title,
		Requested:    requested,
		CreateDate:   now,
		UpdateDate:   now,
		JSONResponse: data,
	}, nil
}

// Report decodes the stored report.
func (s *ReportSnapshot) Report() (*Report, error) {
	var rep Report
	if err := json.Unmarshal(s.JSONResponse, &rep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %d: %w", s.ID, err)
	}
	return &rep, nil
}

// IsFromDay reports whether the snapshot was last updated on the same UTC
// calendar day as t.
func (s *ReportSnapshot) IsFromDay(t time.Time) bool {
	return s.UpdateDate.UTC().Format("2006-01-02") == t.UTC().Format("2006-01-02")
}

func parseSnapshotTime(s string) (time.Time, error) {
	t, err := time.Parse(snapshotTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse snapshot time %q: %w", s, err)
	}
	return t, nil
}
