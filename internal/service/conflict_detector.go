package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/internal/models"
)

// ConflictRule describes one scheduling dimension two entries can collide on.
// Entries only ever conflict within the same (group key, day) bucket.
type ConflictRule interface {
	Type() models.ConflictType
	GroupKey(e models.ScheduleDetail) (string, bool)
	Describe(a, b scheduleInterval) string
	Recommend(a, b scheduleInterval) string
}

// RoomDoubleBookingRule flags two entries booked into the same room.
type RoomDoubleBookingRule struct{}

// Type implements ConflictRule.
func (RoomDoubleBookingRule) Type() models.ConflictType { return models.ConflictTypeRoom }

// GroupKey implements ConflictRule.
func (RoomDoubleBookingRule) GroupKey(e models.ScheduleDetail) (string, bool) {
	return e.RoomID, e.RoomID != ""
}

// Describe implements ConflictRule.
func (RoomDoubleBookingRule) Describe(a, b scheduleInterval) string {
	return fmt.Sprintf("Room %s has overlapping classes: '%s' and '%s' on %s %s - %s and %s - %s",
		a.entry.RoomNumber,
		a.entry.SubjectName, b.entry.SubjectName,
		a.entry.DayOfWeek,
		formatClock12(a.start), formatClock12(a.end),
		formatClock12(b.start), formatClock12(b.end),
	)
}

// Recommend implements ConflictRule.
func (RoomDoubleBookingRule) Recommend(_, _ scheduleInterval) string {
	return "Move one of the classes to another available room or adjust the schedule."
}

// InstructorDoubleBookingRule flags two entries assigned to the same instructor.
type InstructorDoubleBookingRule struct{}

// Type implements ConflictRule.
func (InstructorDoubleBookingRule) Type() models.ConflictType {
	return models.ConflictTypeInstructor
}

// GroupKey implements ConflictRule.
func (InstructorDoubleBookingRule) GroupKey(e models.ScheduleDetail) (string, bool) {
	return e.InstructorID, e.InstructorID != ""
}

// Describe implements ConflictRule.
func (InstructorDoubleBookingRule) Describe(a, b scheduleInterval) string {
	return fmt.Sprintf("Instructor %s has overlapping classes: '%s' and '%s' on %s %s - %s and %s - %s",
		a.entry.InstructorName,
		a.entry.SubjectName, b.entry.SubjectName,
		a.entry.DayOfWeek,
		formatClock12(a.start), formatClock12(a.end),
		formatClock12(b.start), formatClock12(b.end),
	)
}

// Recommend implements ConflictRule.
func (InstructorDoubleBookingRule) Recommend(a, _ scheduleInterval) string {
	return fmt.Sprintf("Reassign one of the overlapping classes for %s to another instructor or move it to a different time.", a.entry.InstructorName)
}

// DefaultConflictRules returns the rules a standard detection pass applies.
func DefaultConflictRules() []ConflictRule {
	return []ConflictRule{RoomDoubleBookingRule{}, InstructorDoubleBookingRule{}}
}

// DetectedConflict is one colliding pair produced by a detection pass. The
// schedule ids are already normalized (A < B).
type DetectedConflict struct {
	Type           models.ConflictType
	ScheduleAID    string
	ScheduleBID    string
	Description    string
	Recommendation string
}

// Key returns the normalized (type, pair) identity.
func (d DetectedConflict) Key() string {
	return models.ConflictKey(d.Type, d.ScheduleAID, d.ScheduleBID)
}

// scheduleInterval is a schedule entry with its time window parsed into
// minutes since midnight.
type scheduleInterval struct {
	entry models.ScheduleDetail
	start int
	end   int
}

// ConflictDetector finds colliding schedule pairs. The computation is pure:
// it never touches storage and can be rerun safely.
type ConflictDetector struct {
	rules  []ConflictRule
	logger *zap.Logger
}

// NewConflictDetector builds a detector. A nil rule set means the default
// room and instructor rules.
func NewConflictDetector(rules []ConflictRule, logger *zap.Logger) *ConflictDetector {
	if len(rules) == 0 {
		rules = DefaultConflictRules()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{rules: rules, logger: logger}
}

// Detect runs every rule over the entries and returns the colliding pairs
// plus data-integrity warnings for entries that had to be skipped. Entries
// with a malformed or inverted time window are skipped, never fatal.
func (d *ConflictDetector) Detect(entries []models.ScheduleDetail) ([]DetectedConflict, []string) {
	var warnings []string
	intervals := make([]scheduleInterval, 0, len(entries))

	for _, e := range entries {
		start, err := parseClock(e.StartTime)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("schedule %s: invalid start_time %q", e.ID, e.StartTime))
			continue
		}
		end, err := parseClock(e.EndTime)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("schedule %s: invalid end_time %q", e.ID, e.EndTime))
			continue
		}
		if end <= start {
			warnings = append(warnings, fmt.Sprintf("schedule %s: end_time %s is not after start_time %s", e.ID, e.EndTime, e.StartTime))
			continue
		}
		if !models.IsWeekday(e.DayOfWeek) {
			warnings = append(warnings, fmt.Sprintf("schedule %s: unknown day_of_week %q", e.ID, e.DayOfWeek))
			continue
		}
		intervals = append(intervals, scheduleInterval{entry: e, start: start, end: end})
	}

	var detected []DetectedConflict
	for _, rule := range d.rules {
		detected = append(detected, d.applyRule(rule, intervals)...)
	}

	for _, w := range warnings {
		d.logger.Warn("schedule skipped during conflict detection", zap.String("reason", w))
	}
	return detected, warnings
}

// applyRule buckets intervals by (group key, day), sorts each bucket by start
// time, and sweeps it. Because buckets are sorted by start, the scan for a
// given entry stops at the first later entry starting at or after its end.
func (d *ConflictDetector) applyRule(rule ConflictRule, intervals []scheduleInterval) []DetectedConflict {
	groups := make(map[string][]scheduleInterval)
	for _, iv := range intervals {
		key, ok := rule.GroupKey(iv.entry)
		if !ok {
			continue
		}
		bucket := key + "|" + iv.entry.DayOfWeek
		groups[bucket] = append(groups[bucket], iv)
	}

	var out []DetectedConflict
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			if group[i].start != group[j].start {
				return group[i].start < group[j].start
			}
			return group[i].entry.ID < group[j].entry.ID
		})

		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				// Half-open intervals: touching endpoints do not overlap.
				if group[j].start >= group[i].end {
					break
				}
				a, b := models.NormalizePair(group[i].entry.ID, group[j].entry.ID)
				out = append(out, DetectedConflict{
					Type:           rule.Type(),
					ScheduleAID:    a,
					ScheduleBID:    b,
					Description:    rule.Describe(group[i], group[j]),
					Recommendation: rule.Recommend(group[i], group[j]),
				})
			}
		}
	}
	return out
}

// SyncPlan partitions a detection result against the stored conflict set.
// Inserts are new pairs, Preserved are already-stored pairs whose status must
// survive the pass, Stale are stored records no longer backed by an overlap.
type SyncPlan struct {
	Inserts   []models.Conflict
	Preserved []models.Conflict
	Stale     []models.Conflict
}

// BuildSyncPlan compares detected pairs with existing records by normalized
// pair key. Detected pairs already stored keep their record (and status);
// stored records not re-detected are stale.
func BuildSyncPlan(detected []DetectedConflict, existing []models.Conflict) SyncPlan {
	existingByKey := make(map[string]models.Conflict, len(existing))
	for _, c := range existing {
		existingByKey[c.PairKey()] = c
	}

	var plan SyncPlan
	seen := make(map[string]struct{}, len(detected))
	for _, dc := range detected {
		key := dc.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if prior, ok := existingByKey[key]; ok {
			prior.Description = dc.Description
			prior.Recommendation = dc.Recommendation
			plan.Preserved = append(plan.Preserved, prior)
			continue
		}
		plan.Inserts = append(plan.Inserts, models.Conflict{
			ScheduleAID:    dc.ScheduleAID,
			ScheduleBID:    dc.ScheduleBID,
			ConflictType:   dc.Type,
			Description:    dc.Description,
			Recommendation: dc.Recommendation,
			Status:         models.ConflictStatusPending,
		})
	}

	for _, c := range existing {
		if _, ok := seen[c.PairKey()]; !ok {
			plan.Stale = append(plan.Stale, c)
		}
	}
	return plan
}

// parseClock converts "HH:MM" or "HH:MM:SS" into minutes since midnight.
func parseClock(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hours*60 + minutes, nil
}

// formatClock12 renders minutes since midnight as "03:04 PM".
func formatClock12(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60
	suffix := "AM"
	display := hours
	switch {
	case hours == 0:
		display = 12
	case hours == 12:
		suffix = "PM"
	case hours > 12:
		display = hours - 12
		suffix = "PM"
	}
	return fmt.Sprintf("%02d:%02d %s", display, mins, suffix)
}
