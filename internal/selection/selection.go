// Package selection plans a day's slot assignments from the candidate
// pool under diversity constraints. Pure computation over an in-memory
// snapshot; persistence belongs to the store.
package selection

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
)

// Options are the tunable diversity constraints.
type Options struct {
	PlatformDailyCap   int
	TargetPlatforms    int
	TargetContentTypes int
}

// DefaultOptions returns the stock constraint set.
func DefaultOptions() Options {
	return Options{
		PlatformDailyCap:   2,
		TargetPlatforms:    3,
		TargetContentTypes: 2,
	}
}

// RationaleNoContent marks a slot left empty because the pool ran out.
const RationaleNoContent = "no content available"

// selectionState tracks what the day has consumed. Used content ids and
// platform counts are seeded from every committed assignment before the
// walk starts; last-platform/type follow the chronological walk. Never
// persisted.
type selectionState struct {
	used            map[int64]bool
	platformCount   map[string]int
	lastPlatform    string
	lastContentType string
}

func newSelectionState(existing []models.ScheduleAssignment) *selectionState {
	s := &selectionState{
		used:          make(map[int64]bool),
		platformCount: make(map[string]int),
	}
	for i := range existing {
		if !existing[i].Committed() {
			continue
		}
		s.used[*existing[i].ContentID] = true
		if existing[i].Platform != "" {
			s.platformCount[existing[i].Platform]++
		}
	}
	return s
}

func (s *selectionState) consume(contentID int64, platform, contentType string) {
	s.used[contentID] = true
	s.platformCount[platform]++
	s.lastPlatform = platform
	s.lastContentType = contentType
}

func (s *selectionState) observe(platform, contentType string) {
	s.lastPlatform = platform
	s.lastContentType = contentType
}

// AssignDay produces the day's full assignment plan, slot by slot in
// chronological order. Slots that already carry a committed content id
// pass through untouched; forecast never overwrites a filled slot.
// Every committed assignment seeds the state before the walk, so an
// item already holding a later slot can never be handed to an earlier
// empty one. The pool must be pre-sorted (confidence descending,
// oldest-approved tiebreak) as the candidate reader returns it.
func AssignDay(daySlots []models.TimeSlot, existing []models.ScheduleAssignment, pool []models.ContentCandidate, opts Options, now time.Time) []models.ScheduleAssignment {
	if opts.PlatformDailyCap < 1 {
		opts.PlatformDailyCap = DefaultOptions().PlatformDailyCap
	}

	existingBySlot := make(map[int]*models.ScheduleAssignment, len(existing))
	for i := range existing {
		existingBySlot[existing[i].SlotIndex] = &existing[i]
	}

	state := newSelectionState(existing)
	plan := make([]models.ScheduleAssignment, 0, len(daySlots))

	for _, slot := range daySlots {
		if prior := existingBySlot[slot.SlotIndex]; prior.Committed() {
			state.observe(prior.Platform, prior.ContentType)
			plan = append(plan, *prior)
			continue
		}

		candidate, relaxations := pickCandidate(pool, state, opts)
		assignment := models.ScheduleAssignment{
			DayKey:           slot.DayKey,
			SlotIndex:        slot.SlotIndex,
			ScheduledInstant: slot.Instant,
		}
		if prior := existingBySlot[slot.SlotIndex]; prior != nil {
			assignment.ActualPostedInstant = prior.ActualPostedInstant
		}

		if candidate == nil {
			assignment.Rationale = RationaleNoContent
		} else {
			id := candidate.ID
			assignment.ContentID = &id
			assignment.Platform = candidate.Platform
			assignment.ContentType = candidate.ContentType
			assignment.Source = candidate.Author
			assignment.TitleSnippet = candidate.TitleSnippet
			assignment.Rationale = buildRationale(candidate, relaxations)
			state.consume(candidate.ID, candidate.Platform, candidate.ContentType)
		}

		assignment.Status = ClassifyStatus(&assignment, now)
		plan = append(plan, assignment)
	}

	return plan
}

// pickCandidate narrows the unused pool through the diversity filters
// in order, skipping any filter that would empty the set and recording
// the skip as a relaxation.
func pickCandidate(pool []models.ContentCandidate, state *selectionState, opts Options) (*models.ContentCandidate, []string) {
	available := make([]models.ContentCandidate, 0, len(pool))
	for _, c := range pool {
		if !state.used[c.ID] {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return nil, nil
	}

	var relaxations []string

	if state.lastPlatform != "" {
		filtered := filterCandidates(available, func(c models.ContentCandidate) bool {
			return c.Platform != state.lastPlatform
		})
		if len(filtered) > 0 {
			available = filtered
		} else {
			relaxations = append(relaxations, "relaxed platform variety because no other candidates available")
		}
	}

	filtered := filterCandidates(available, func(c models.ContentCandidate) bool {
		return state.platformCount[c.Platform] < opts.PlatformDailyCap
	})
	if len(filtered) > 0 {
		available = filtered
	} else {
		relaxations = append(relaxations, "relaxed platform cap because no other candidates available")
	}

	if state.lastContentType != "" {
		filtered = filterCandidates(available, func(c models.ContentCandidate) bool {
			return c.ContentType != state.lastContentType
		})
		if len(filtered) > 0 {
			available = filtered
		} else {
			relaxations = append(relaxations, "relaxed content type variety because no other candidates available")
		}
	}

	// Head of the filtered list: the pool arrives pre-sorted.
	return &available[0], relaxations
}

func filterCandidates(pool []models.ContentCandidate, keep func(models.ContentCandidate) bool) []models.ContentCandidate {
	out := make([]models.ContentCandidate, 0, len(pool))
	for _, c := range pool {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func buildRationale(c *models.ContentCandidate, relaxations []string) string {
	base := fmt.Sprintf("selected %s %s (score %.2f)", c.Platform, c.ContentType, c.ConfidenceScore)
	if len(relaxations) == 0 {
		return base
	}
	return base + "; " + strings.Join(relaxations, "; ")
}

// ClassifyStatus derives an assignment's status: posted when an actual
// instant is stamped, missed when its scheduled instant has passed,
// upcoming otherwise.
func ClassifyStatus(a *models.ScheduleAssignment, now time.Time) string {
	if a.ActualPostedInstant != nil {
		return models.StatusPosted
	}
	if !a.ScheduledInstant.After(now) {
		return models.StatusMissed
	}
	return models.StatusUpcoming
}

// DiversityScore rewards platform and content-type variety across the
// day's filled slots on a 0-100 scale. Observational only; it never
// gates assignment.
func DiversityScore(assignments []models.ScheduleAssignment, opts Options) int {
	platforms := make(map[string]bool)
	contentTypes := make(map[string]bool)
	for i := range assignments {
		if !assignments[i].Committed() {
			continue
		}
		if assignments[i].Platform != "" {
			platforms[assignments[i].Platform] = true
		}
		if assignments[i].ContentType != "" {
			contentTypes[assignments[i].ContentType] = true
		}
	}

	targetPlatforms := opts.TargetPlatforms
	if targetPlatforms < 1 {
		targetPlatforms = DefaultOptions().TargetPlatforms
	}
	targetTypes := opts.TargetContentTypes
	if targetTypes < 1 {
		targetTypes = DefaultOptions().TargetContentTypes
	}

	platformShare := math.Min(float64(len(platforms))/float64(targetPlatforms), 1)
	typeShare := math.Min(float64(len(contentTypes))/float64(targetTypes), 1)
	return int(math.Round(platformShare*50 + typeShare*50))
}

// Summarize aggregates a day's plan into the forecast summary.
func Summarize(assignments []models.ScheduleAssignment, opts Options) models.ForecastSummary {
	summary := models.ForecastSummary{
		PlatformCounts:    make(map[string]int),
		ContentTypeCounts: make(map[string]int),
	}
	for i := range assignments {
		switch assignments[i].Status {
		case models.StatusPosted:
			summary.Posted++
		case models.StatusMissed:
			summary.Missed++
		default:
			summary.Upcoming++
		}
		if assignments[i].Committed() {
			if assignments[i].Platform != "" {
				summary.PlatformCounts[assignments[i].Platform]++
			}
			if assignments[i].ContentType != "" {
				summary.ContentTypeCounts[assignments[i].ContentType]++
			}
		}
	}
	summary.DiversityScore = DiversityScore(assignments, opts)
	return summary
}
