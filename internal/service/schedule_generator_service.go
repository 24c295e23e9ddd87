package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/iload-dev/iload-api/internal/models"
	appErrors "github.com/iload-dev/iload-api/pkg/errors"
)

type generatorScheduleRepository interface {
	ListDetailedForTerm(ctx context.Context, schoolYear, semester string) ([]models.ScheduleDetail, error)
	Create(ctx context.Context, schedule *models.Schedule) error
}

// GenerateClassRequest asks for one weekly meeting of a subject, taught by a
// fixed instructor in one of the candidate rooms.
type GenerateClassRequest struct {
	SubjectID       string   `json:"subject_id" validate:"required,uuid4"`
	InstructorID    string   `json:"instructor_id" validate:"required,uuid4"`
	RoomIDs         []string `json:"room_ids" validate:"required,min=1,dive,uuid4"`
	DurationMinutes int      `json:"duration_minutes" validate:"omitempty,min=30,max=300"`
}

// GenerateScheduleInput describes one generation run. Classes already stored
// for the term are treated as fixed and never moved.
type GenerateScheduleInput struct {
	SchoolYear string                 `json:"school_year" validate:"required"`
	Semester   string                 `json:"semester" validate:"required"`
	StartTime  string                 `json:"start_time"`
	EndTime    string                 `json:"end_time"`
	Requests   []GenerateClassRequest `json:"requests" validate:"required,min=1,max=60,dive"`
}

// ScheduleProposal is a generated timetable held in memory until it is saved
// or its TTL lapses. Entries carry no ids until Save persists them.
type ScheduleProposal struct {
	ID          string            `json:"id"`
	SchoolYear  string            `json:"school_year"`
	Semester    string            `json:"semester"`
	Entries     []models.Schedule `json:"entries"`
	GeneratedAt time.Time         `json:"generated_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// ScheduleGeneratorConfig tunes proposal retention and slot granularity.
type ScheduleGeneratorConfig struct {
	ProposalTTL time.Duration
	SlotStep    time.Duration
}

const (
	defaultWindowStart     = "07:00"
	defaultWindowEnd       = "19:00"
	defaultClassDuration   = 90 * time.Minute
	defaultGeneratorStep   = 30 * time.Minute
	defaultProposalTTL     = 15 * time.Minute
	maxGeneratorCandidates = 20000
)

// ScheduleGeneratorService produces conflict-free timetable proposals. Each
// class request is a variable whose domain is every (day, start, room) slot
// inside the window; arc consistency prunes the domains, then a backtracking
// search with minimum-remaining-values ordering assigns them.
type ScheduleGeneratorService struct {
	repo      generatorScheduleRepository
	scans     scanTrigger
	validate  *validator.Validate
	proposals *gocache.Cache
	slotStep  int
	ttl       time.Duration
	logger    *zap.Logger
}

// NewScheduleGeneratorService wires the generator.
func NewScheduleGeneratorService(repo generatorScheduleRepository, scans scanTrigger, logger *zap.Logger, cfg ScheduleGeneratorConfig) *ScheduleGeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = defaultProposalTTL
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = defaultGeneratorStep
	}
	return &ScheduleGeneratorService{
		repo:      repo,
		scans:     scans,
		validate:  validator.New(),
		proposals: gocache.New(cfg.ProposalTTL, cfg.ProposalTTL),
		slotStep:  int(cfg.SlotStep.Minutes()),
		ttl:       cfg.ProposalTTL,
		logger:    logger,
	}
}

// sessionSlot is one candidate placement for a class request.
type sessionSlot struct {
	day    string
	start  int
	end    int
	roomID string
}

// Generate solves the placement problem against the term's stored entries
// and caches the resulting proposal under a fresh id.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, input GenerateScheduleInput) (*ScheduleProposal, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation payload")
	}

	windowStart, windowEnd, err := parseWindow(input.StartTime, input.EndTime)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.ListDetailedForTerm(ctx, input.SchoolYear, input.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stored schedules for generation")
	}
	fixed := fixedSessions(stored)

	start := time.Now()
	domains, err := s.buildDomains(input.Requests, fixed, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	if !pruneDomains(input.Requests, domains) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "the requested classes cannot all fit inside the time window")
	}

	assigned := make(map[int]sessionSlot, len(domains))
	if !assignSlots(input.Requests, domains, assigned) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no conflict-free timetable exists for the requested classes")
	}

	proposal := &ScheduleProposal{
		ID:          uuid.NewString(),
		SchoolYear:  input.SchoolYear,
		Semester:    input.Semester,
		Entries:     proposalEntries(input, assigned),
		GeneratedAt: time.Now().UTC(),
	}
	proposal.ExpiresAt = proposal.GeneratedAt.Add(s.ttl)
	s.proposals.SetDefault(proposal.ID, proposal)

	s.logger.Info("schedule proposal generated",
		zap.String("proposal_id", proposal.ID),
		zap.String("school_year", input.SchoolYear),
		zap.String("semester", input.Semester),
		zap.Int("classes", len(proposal.Entries)),
		zap.Int("fixed_entries", len(fixed)),
		zap.Duration("duration", time.Since(start)),
	)
	return proposal, nil
}

// Proposal returns a cached proposal by id.
func (s *ScheduleGeneratorService) Proposal(id string) (*ScheduleProposal, error) {
	value, ok := s.proposals.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	proposal, ok := value.(*ScheduleProposal)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, "corrupt proposal entry")
	}
	return proposal, nil
}

// Save persists a proposal's entries as unapproved schedules and enqueues
// incremental conflict scans for every group they joined. The proposal is
// discarded afterwards so it cannot be saved twice.
func (s *ScheduleGeneratorService) Save(ctx context.Context, id string) ([]models.Schedule, error) {
	proposal, err := s.Proposal(id)
	if err != nil {
		return nil, err
	}

	saved := make([]models.Schedule, 0, len(proposal.Entries))
	for _, entry := range proposal.Entries {
		schedule := entry
		if err := s.repo.Create(ctx, &schedule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save proposed schedule")
		}
		saved = append(saved, schedule)
		s.triggerScan(scopeOf(&schedule))
	}

	s.proposals.Delete(id)
	s.logger.Info("schedule proposal saved",
		zap.String("proposal_id", id),
		zap.Int("entries", len(saved)),
	)
	return saved, nil
}

// Discard drops a cached proposal.
func (s *ScheduleGeneratorService) Discard(id string) error {
	if _, err := s.Proposal(id); err != nil {
		return err
	}
	s.proposals.Delete(id)
	return nil
}

func (s *ScheduleGeneratorService) triggerScan(scope GroupScope) {
	if s.scans == nil {
		return
	}
	if err := s.scans.EnqueueGroupScan(scope); err != nil {
		s.logger.Warn("conflict scan not enqueued after proposal save",
			zap.String("day", scope.DayOfWeek),
			zap.String("room_id", scope.RoomID),
			zap.Error(err),
		)
	}
}

// buildDomains enumerates every slot a request could occupy and drops the
// ones colliding with a stored entry. An empty domain fails fast with the
// subject that cannot be placed.
func (s *ScheduleGeneratorService) buildDomains(requests []GenerateClassRequest, fixed []fixedSession, windowStart, windowEnd int) ([][]sessionSlot, error) {
	total := 0
	domains := make([][]sessionSlot, len(requests))
	for i, req := range requests {
		duration := req.DurationMinutes
		if duration == 0 {
			duration = int(defaultClassDuration.Minutes())
		}
		if windowStart+duration > windowEnd {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("class duration %d minutes does not fit the %s-%s window", duration, formatClock24(windowStart), formatClock24(windowEnd)))
		}

		var domain []sessionSlot
		for _, day := range models.Weekdays {
			for start := windowStart; start+duration <= windowEnd; start += s.slotStep {
				for _, roomID := range req.RoomIDs {
					slot := sessionSlot{day: day, start: start, end: start + duration, roomID: roomID}
					if slotCollidesWithFixed(slot, req.InstructorID, fixed) {
						continue
					}
					domain = append(domain, slot)
				}
			}
		}
		if len(domain) == 0 {
			return nil, appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("no free slot exists for subject %s with the given rooms and instructor", req.SubjectID))
		}
		total += len(domain)
		if total > maxGeneratorCandidates {
			return nil, appErrors.Clone(appErrors.ErrValidation, "generation request is too large, narrow the window or candidate rooms")
		}
		domains[i] = domain
	}
	return domains, nil
}

// fixedSession is a stored entry the solver must schedule around.
type fixedSession struct {
	slot         sessionSlot
	instructorID string
}

// fixedSessions parses stored entries into solver constraints. Malformed
// rows are skipped the same way the detector skips them.
func fixedSessions(stored []models.ScheduleDetail) []fixedSession {
	out := make([]fixedSession, 0, len(stored))
	for _, e := range stored {
		start, err := parseClock(e.StartTime)
		if err != nil {
			continue
		}
		end, err := parseClock(e.EndTime)
		if err != nil || end <= start {
			continue
		}
		out = append(out, fixedSession{
			slot:         sessionSlot{day: e.DayOfWeek, start: start, end: end, roomID: e.RoomID},
			instructorID: e.InstructorID,
		})
	}
	return out
}

func slotCollidesWithFixed(slot sessionSlot, instructorID string, fixed []fixedSession) bool {
	for _, f := range fixed {
		if slotsConflict(slot, instructorID, f.slot, f.instructorID) {
			return true
		}
	}
	return false
}

// slotsConflict mirrors the detection rules: same day, overlapping half-open
// windows, and a shared room or instructor.
func slotsConflict(a sessionSlot, aInstructor string, b sessionSlot, bInstructor string) bool {
	if a.day != b.day {
		return false
	}
	if a.start >= b.end || b.start >= a.end {
		return false
	}
	return a.roomID == b.roomID || aInstructor == bInstructor
}

type domainArc struct {
	x int
	y int
}

// pruneDomains enforces arc consistency: a slot survives only while every
// other variable still has some slot compatible with it. Returns false when
// a domain empties, meaning no assignment can exist.
func pruneDomains(requests []GenerateClassRequest, domains [][]sessionSlot) bool {
	queue := make([]domainArc, 0, len(domains)*(len(domains)-1))
	for x := range domains {
		for y := range domains {
			if x != y {
				queue = append(queue, domainArc{x: x, y: y})
			}
		}
	}

	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if !reviseDomain(requests, domains, a.x, a.y) {
			continue
		}
		if len(domains[a.x]) == 0 {
			return false
		}
		for z := range domains {
			if z != a.x && z != a.y {
				queue = append(queue, domainArc{x: z, y: a.x})
			}
		}
	}
	return true
}

// reviseDomain drops slots of x that conflict with every remaining slot of y.
func reviseDomain(requests []GenerateClassRequest, domains [][]sessionSlot, x, y int) bool {
	kept := make([]sessionSlot, 0, len(domains[x]))
	for _, vx := range domains[x] {
		supported := false
		for _, vy := range domains[y] {
			if !slotsConflict(vx, requests[x].InstructorID, vy, requests[y].InstructorID) {
				supported = true
				break
			}
		}
		if supported {
			kept = append(kept, vx)
		}
	}
	revised := len(kept) != len(domains[x])
	domains[x] = kept
	return revised
}

// assignSlots is the backtracking search. The unassigned variable with the
// smallest remaining domain is tried first.
func assignSlots(requests []GenerateClassRequest, domains [][]sessionSlot, assigned map[int]sessionSlot) bool {
	if len(assigned) == len(domains) {
		return true
	}

	next := -1
	for i := range domains {
		if _, done := assigned[i]; done {
			continue
		}
		if next == -1 || len(domains[i]) < len(domains[next]) {
			next = i
		}
	}

	for _, slot := range domains[next] {
		consistent := true
		for j, taken := range assigned {
			if slotsConflict(slot, requests[next].InstructorID, taken, requests[j].InstructorID) {
				consistent = false
				break
			}
		}
		if !consistent {
			continue
		}
		assigned[next] = slot
		if assignSlots(requests, domains, assigned) {
			return true
		}
		delete(assigned, next)
	}
	return false
}

// proposalEntries renders the assignment as schedule rows ordered by day
// then start time.
func proposalEntries(input GenerateScheduleInput, assigned map[int]sessionSlot) []models.Schedule {
	entries := make([]models.Schedule, 0, len(assigned))
	for i, slot := range assigned {
		req := input.Requests[i]
		entries = append(entries, models.Schedule{
			SubjectID:    req.SubjectID,
			InstructorID: req.InstructorID,
			RoomID:       slot.roomID,
			DayOfWeek:    slot.day,
			StartTime:    formatClock24(slot.start),
			EndTime:      formatClock24(slot.end),
			Semester:     input.Semester,
			SchoolYear:   input.SchoolYear,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		di, dj := weekdayIndex(entries[i].DayOfWeek), weekdayIndex(entries[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		if entries[i].StartTime != entries[j].StartTime {
			return entries[i].StartTime < entries[j].StartTime
		}
		return entries[i].SubjectID < entries[j].SubjectID
	})
	return entries
}

func weekdayIndex(day string) int {
	for i, d := range models.Weekdays {
		if d == day {
			return i
		}
	}
	return len(models.Weekdays)
}

// parseWindow validates the generation window, applying the institution's
// 07:00-19:00 teaching day when a bound is omitted.
func parseWindow(startTime, endTime string) (int, int, error) {
	if startTime == "" {
		startTime = defaultWindowStart
	}
	if endTime == "" {
		endTime = defaultWindowEnd
	}
	start, err := parseClock(startTime)
	if err != nil {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "start_time must be a valid HH:MM clock value")
	}
	end, err := parseClock(endTime)
	if err != nil {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "end_time must be a valid HH:MM clock value")
	}
	if end <= start {
		return 0, 0, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return start, end, nil
}

// formatClock24 renders minutes since midnight as "HH:MM".
func formatClock24(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
