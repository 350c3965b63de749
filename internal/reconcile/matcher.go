// Package reconcile aligns actually-published records back onto the
// projected schedule. Pure computation; the orchestrator applies the
// resulting decisions through the store.
package reconcile

import (
	"fmt"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
)

// DefaultTolerance is the stock maximum distance between a posted
// instant and a slot instant for a match to be accepted.
const DefaultTolerance = 45 * time.Minute

// MatchDay computes a best-effort mapping of each posted record to a
// slot, with a decision trail. Decisions are in priority order: an
// assignment already carrying the record's content id wins within
// tolerance, then the nearest platform-compatible slot, then no_match.
// Records that match nothing are reported, never silently dropped.
func MatchDay(daySlots []models.TimeSlot, posted []models.PostedRecord, existing []models.ScheduleAssignment, tolerance time.Duration) []models.MatchDecision {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	existingBySlot := make(map[int]*models.ScheduleAssignment, len(existing))
	for i := range existing {
		existingBySlot[existing[i].SlotIndex] = &existing[i]
	}

	claimed := make(map[int]bool)
	decisions := make([]models.MatchDecision, 0, len(posted))

	for _, record := range posted {
		decision := matchRecord(daySlots, existingBySlot, claimed, record, tolerance)
		if decision.Decision != models.DecisionNoMatch {
			claimed[decision.SlotIndex] = true
		}
		decisions = append(decisions, decision)
	}

	return decisions
}

func matchRecord(daySlots []models.TimeSlot, existingBySlot map[int]*models.ScheduleAssignment, claimed map[int]bool, record models.PostedRecord, tolerance time.Duration) models.MatchDecision {
	// Nearest slot overall, unconditionally: it anchors the decision
	// trail even when nothing matches.
	nearestIdx, nearestDist := nearestSlot(daySlots, record.PostedAt, func(int) bool { return true })

	// Exact content-id match against an existing assignment.
	for _, slot := range daySlots {
		assignment := existingBySlot[slot.SlotIndex]
		if !assignment.Committed() || *assignment.ContentID != record.ContentID {
			continue
		}
		dist := absDistance(slot.Instant, record.PostedAt)
		if dist <= tolerance {
			return models.MatchDecision{
				Record:    record,
				Decision:  models.DecisionExactContentID,
				SlotIndex: slot.SlotIndex,
				Distance:  models.Duration(dist),
				Reason:    fmt.Sprintf("assignment at slot %d already references content %d (%s away)", slot.SlotIndex, record.ContentID, round(dist)),
			}
		}
	}

	// Platform-nearest fallback: the closest unclaimed slot that either
	// shares the record's platform or is still empty.
	idx, dist := nearestSlot(daySlots, record.PostedAt, func(slotIndex int) bool {
		if claimed[slotIndex] {
			return false
		}
		assignment := existingBySlot[slotIndex]
		if !assignment.Committed() {
			return true
		}
		return assignment.Platform == record.Platform
	})
	if idx >= 0 && dist <= tolerance {
		return models.MatchDecision{
			Record:    record,
			Decision:  models.DecisionPlatformNearest,
			SlotIndex: idx,
			Distance:  models.Duration(dist),
			Reason:    fmt.Sprintf("nearest %s-compatible slot is %d (%s away)", record.Platform, idx, round(dist)),
		}
	}

	return models.MatchDecision{
		Record:    record,
		Decision:  models.DecisionNoMatch,
		SlotIndex: -1,
		Distance:  models.Duration(nearestDist),
		Reason:    fmt.Sprintf("no compatible slot within %s tolerance (nearest slot %d is %s away)", round(tolerance), nearestIdx, round(nearestDist)),
	}
}

// ApplyPatch builds the upsert patch for a matched decision. If the
// target assignment already carries a content id, only the actual
// posted instant and status are stamped; the content reference is
// preserved. Empty targets receive the record's identity as well.
func ApplyPatch(decision models.MatchDecision, slot models.TimeSlot, target *models.ScheduleAssignment) models.AssignmentPatch {
	postedAt := decision.Record.PostedAt
	patch := models.AssignmentPatch{
		ScheduledInstant:    slot.Instant,
		ActualPostedInstant: &postedAt,
		Status:              models.StatusPosted,
	}

	if target.Committed() {
		patch.ContentID = target.ContentID
		patch.Platform = target.Platform
		patch.ContentType = target.ContentType
		patch.Source = target.Source
		patch.TitleSnippet = target.TitleSnippet
		patch.Rationale = target.Rationale
		return patch
	}

	contentID := decision.Record.ContentID
	patch.ContentID = &contentID
	patch.Platform = decision.Record.Platform
	patch.ContentType = decision.Record.ContentType
	patch.Rationale = fmt.Sprintf("reconciled from posted record (%s)", decision.Decision)
	return patch
}

func nearestSlot(daySlots []models.TimeSlot, instant time.Time, eligible func(slotIndex int) bool) (int, time.Duration) {
	bestIdx := -1
	var bestDist time.Duration
	for _, slot := range daySlots {
		if !eligible(slot.SlotIndex) {
			continue
		}
		dist := absDistance(slot.Instant, instant)
		if bestIdx == -1 || dist < bestDist {
			bestIdx = slot.SlotIndex
			bestDist = dist
		}
	}
	return bestIdx, bestDist
}

func absDistance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Minute)
}
