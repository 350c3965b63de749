package models

import "time"

// SlotView is the per-slot entry in a forecast response or day view.
type SlotView struct {
	SlotIndex  int               `json:"slot_index"`
	CivilLabel string            `json:"civil_label"`
	Instant    time.Time         `json:"instant"`
	Status     string            `json:"status"`
	Content    *ContentCandidate `json:"content"`
	Rationale  string            `json:"rationale,omitempty"`
}

// ForecastSummary aggregates a day's slot statuses and diversity.
type ForecastSummary struct {
	Posted            int            `json:"posted"`
	Upcoming          int            `json:"upcoming"`
	Missed            int            `json:"missed"`
	PlatformCounts    map[string]int `json:"platform_counts"`
	ContentTypeCounts map[string]int `json:"content_type_counts"`
	DiversityScore    int            `json:"diversity_score"`
}

// ForecastResult is the full response of a forecast run.
type ForecastResult struct {
	RunID   string          `json:"run_id"`
	Date    string          `json:"date"`
	Slots   []SlotView      `json:"slots"`
	Summary ForecastSummary `json:"summary"`
}

// ReconcileDetail is one posted record's outcome in a reconcile run:
// the match decision plus what, if anything, was written.
type ReconcileDetail struct {
	MatchDecision
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ReconcileReport is the full response of a reconcile run. TotalOrphans
// counts only posted records whose content id no assignment references;
// records matching a committed assignment are confirmations, not
// orphans.
type ReconcileReport struct {
	RunID           string            `json:"run_id"`
	Date            string            `json:"date"`
	Mode            string            `json:"mode"`
	Note            string            `json:"note,omitempty"`
	TotalOrphans    int               `json:"total_orphans"`
	MatchedExact    int               `json:"matched_exact"`
	MatchedPlatform int               `json:"matched_platform"`
	NoMatch         int               `json:"no_match"`
	UpdatesApplied  int               `json:"updates_applied"`
	Details         []ReconcileDetail `json:"per_record_detail"`
	Errors          []string          `json:"errors"`
}

// DayView is the read-only composed view of a day's schedule.
type DayView struct {
	Date    string          `json:"date"`
	Slots   []SlotView      `json:"slots"`
	Summary ForecastSummary `json:"summary"`
}
