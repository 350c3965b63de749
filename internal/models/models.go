package models

import (
	"strconv"
	"time"
)

// Assignment statuses. A slot is upcoming until its scheduled instant
// passes, missed once it passes without a recorded post, and posted once
// an actual posted instant is stamped onto it.
const (
	StatusUpcoming = "upcoming"
	StatusMissed   = "missed"
	StatusPosted   = "posted"
)

// Reconciliation decisions, in priority order.
const (
	DecisionExactContentID  = "exact_content_id"
	DecisionPlatformNearest = "platform_nearest"
	DecisionNoMatch         = "no_match"
)

// Upsert actions reported by the schedule store.
const (
	ActionCreated   = "created"
	ActionPreserved = "preserved"
	ActionUpdated   = "updated"
)

// Reconcile run modes.
const (
	ModeDryRun = "DRY RUN"
	ModeWrite  = "WRITE"
)

// TimeSlot is one publication opportunity in a day. Derived from the
// day key, the civil-time label, and the reference time zone; never
// persisted on its own.
type TimeSlot struct {
	DayKey     string    `json:"day_key"`
	SlotIndex  int       `json:"slot_index"`
	CivilLabel string    `json:"civil_label"`
	Instant    time.Time `json:"instant"`
}

// ContentCandidate is an approved, not-yet-posted content item owned by
// the upstream content pipeline. Read-only here.
type ContentCandidate struct {
	ID              int64     `json:"id"`
	Platform        string    `json:"platform"`
	ContentType     string    `json:"content_type"`
	Author          string    `json:"author,omitempty"`
	TitleSnippet    string    `json:"title_snippet,omitempty"`
	ConfidenceScore float64   `json:"confidence_score"`
	ApprovedAt      time.Time `json:"approved_at"`
}

// PostedRecord is ground truth from the publishing subsystem: a content
// item that actually went out, and when.
type PostedRecord struct {
	ContentID   int64     `json:"content_id"`
	Platform    string    `json:"platform"`
	ContentType string    `json:"content_type"`
	PostedAt    time.Time `json:"posted_at"`
}

// ScheduleAssignment is the persisted entity this engine owns, keyed by
// (day_key, slot_index). ContentID is append-only: it transitions from
// nil to a value and never to a different value.
type ScheduleAssignment struct {
	DayKey              string     `json:"day_key"`
	SlotIndex           int        `json:"slot_index"`
	ContentID           *int64     `json:"content_id,omitempty"`
	Platform            string     `json:"platform,omitempty"`
	ContentType         string     `json:"content_type,omitempty"`
	Source              string     `json:"source,omitempty"`
	TitleSnippet        string     `json:"title_snippet,omitempty"`
	ScheduledInstant    time.Time  `json:"scheduled_instant"`
	ActualPostedInstant *time.Time `json:"actual_posted_instant,omitempty"`
	Status              string     `json:"status"`
	Rationale           string     `json:"rationale,omitempty"`
	CreatedAt           time.Time  `json:"created_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at,omitempty"`
}

// Committed reports whether the assignment carries a content reference.
func (a *ScheduleAssignment) Committed() bool {
	return a != nil && a.ContentID != nil
}

// AssignmentPatch is the set of fields a caller wants written onto a
// (day_key, slot_index) row. The store preserves an existing content
// reference regardless of what the patch carries.
type AssignmentPatch struct {
	ContentID           *int64
	Platform            string
	ContentType         string
	Source              string
	TitleSnippet        string
	ScheduledInstant    time.Time
	ActualPostedInstant *time.Time
	Status              string
	Rationale           string
}

// MatchDecision is the decision trail for one posted record during a
// reconcile run.
type MatchDecision struct {
	Record    PostedRecord `json:"record"`
	Decision  string       `json:"decision"`
	SlotIndex int          `json:"slot_index"` // -1 when no_match
	Distance  Duration     `json:"distance_minutes"`
	Reason    string       `json:"reason"`
}

// Duration marshals as whole minutes in JSON reports.
type Duration time.Duration

// Minutes returns the duration in minutes.
func (d Duration) Minutes() float64 {
	return time.Duration(d).Minutes()
}

// MarshalJSON renders the duration as rounded minutes.
func (d Duration) MarshalJSON() ([]byte, error) {
	mins := int64(time.Duration(d).Round(time.Minute) / time.Minute)
	return []byte(strconv.FormatInt(mins, 10)), nil
}
