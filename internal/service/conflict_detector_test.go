package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iload-dev/iload-api/internal/models"
)

func detailEntry(id, roomID, instructorID, day, start, end string) models.ScheduleDetail {
	return models.ScheduleDetail{
		Schedule: models.Schedule{
			ID:           id,
			SubjectID:    "subj-" + id,
			InstructorID: instructorID,
			RoomID:       roomID,
			DayOfWeek:    day,
			StartTime:    start,
			EndTime:      end,
			Semester:     "1st Semester",
			SchoolYear:   "2025-2026",
		},
		SubjectCode:    "CS" + id,
		SubjectName:    "Subject " + id,
		InstructorName: instructorID,
		RoomNumber:     roomID,
		RoomType:       "Lecture",
	}
}

func roomConflicts(detected []DetectedConflict) []DetectedConflict {
	var out []DetectedConflict
	for _, d := range detected {
		if d.Type == models.ConflictTypeRoom {
			out = append(out, d)
		}
	}
	return out
}

func TestDetectOverlappingSameRoomSameDay(t *testing.T) {
	detector := NewConflictDetector(nil, nil)

	entries := []models.ScheduleDetail{
		detailEntry("a", "room-105", "inst-1", "Monday", "08:00", "10:00"),
		detailEntry("b", "room-105", "inst-2", "Monday", "09:00", "11:00"),
	}

	detected, warnings := detector.Detect(entries)
	require.Empty(t, warnings)

	room := roomConflicts(detected)
	require.Len(t, room, 1)
	assert.Equal(t, "a", room[0].ScheduleAID)
	assert.Equal(t, "b", room[0].ScheduleBID)
	assert.Contains(t, room[0].Description, "Room room-105")
	assert.Contains(t, room[0].Description, "Monday")
	assert.Contains(t, room[0].Description, "08:00 AM - 10:00 AM")
	assert.Contains(t, room[0].Description, "09:00 AM - 11:00 AM")
	assert.NotEmpty(t, room[0].Recommendation)
}

func TestDetectDifferentRoomOrDayNeverConflicts(t *testing.T) {
	detector := NewConflictDetector([]ConflictRule{RoomDoubleBookingRule{}}, nil)

	t.Run("different rooms", func(t *testing.T) {
		detected, _ := detector.Detect([]models.ScheduleDetail{
			detailEntry("a", "room-1", "inst-1", "Monday", "08:00", "10:00"),
			detailEntry("b", "room-2", "inst-2", "Monday", "08:00", "10:00"),
		})
		assert.Empty(t, detected)
	})

	t.Run("different days", func(t *testing.T) {
		detected, _ := detector.Detect([]models.ScheduleDetail{
			detailEntry("a", "room-1", "inst-1", "Monday", "08:00", "10:00"),
			detailEntry("b", "room-1", "inst-2", "Tuesday", "08:00", "10:00"),
		})
		assert.Empty(t, detected)
	})
}

func TestDetectTouchingEndpointsDoNotConflict(t *testing.T) {
	detector := NewConflictDetector(nil, nil)

	detected, warnings := detector.Detect([]models.ScheduleDetail{
		detailEntry("a", "room-1", "inst-1", "Wednesday", "07:00", "08:00"),
		detailEntry("b", "room-1", "inst-1", "Wednesday", "08:00", "09:00"),
	})
	assert.Empty(t, warnings)
	assert.Empty(t, detected)
}

func TestDetectContainmentCountsAsOverlap(t *testing.T) {
	detector := NewConflictDetector([]ConflictRule{RoomDoubleBookingRule{}}, nil)

	detected, _ := detector.Detect([]models.ScheduleDetail{
		detailEntry("a", "room-1", "inst-1", "Friday", "08:00", "12:00"),
		detailEntry("b", "room-1", "inst-2", "Friday", "09:00", "10:00"),
	})
	require.Len(t, detected, 1)
}

func TestDetectThreeWayOverlapYieldsPairwiseConflicts(t *testing.T) {
	detector := NewConflictDetector([]ConflictRule{RoomDoubleBookingRule{}}, nil)

	detected, _ := detector.Detect([]models.ScheduleDetail{
		detailEntry("a", "room-303", "inst-1", "Thursday", "08:00", "11:00"),
		detailEntry("b", "room-303", "inst-2", "Thursday", "09:00", "12:00"),
		detailEntry("c", "room-303", "inst-3", "Thursday", "10:00", "13:00"),
	})
	require.Len(t, detected, 3)

	keys := map[string]bool{}
	for _, d := range detected {
		keys[d.Key()] = true
	}
	assert.True(t, keys[models.ConflictKey(models.ConflictTypeRoom, "a", "b")])
	assert.True(t, keys[models.ConflictKey(models.ConflictTypeRoom, "a", "c")])
	assert.True(t, keys[models.ConflictKey(models.ConflictTypeRoom, "b", "c")])
}

func TestDetectInstructorDoubleBooking(t *testing.T) {
	detector := NewConflictDetector(nil, nil)

	detected, _ := detector.Detect([]models.ScheduleDetail{
		detailEntry("a", "room-1", "inst-7", "Tuesday", "13:00", "15:00"),
		detailEntry("b", "room-2", "inst-7", "Tuesday", "14:00", "16:00"),
	})

	require.Len(t, detected, 1)
	assert.Equal(t, models.ConflictTypeInstructor, detected[0].Type)
	assert.Contains(t, detected[0].Description, "Instructor inst-7")
	assert.Contains(t, detected[0].Description, "01:00 PM - 03:00 PM")
}

func TestDetectNormalizesPairOrder(t *testing.T) {
	detector := NewConflictDetector([]ConflictRule{RoomDoubleBookingRule{}}, nil)

	// z sorts after b but starts earlier, so the sweep sees z first.
	detected, _ := detector.Detect([]models.ScheduleDetail{
		detailEntry("z", "room-1", "inst-1", "Monday", "08:00", "10:00"),
		detailEntry("b", "room-1", "inst-2", "Monday", "09:00", "11:00"),
	})
	require.Len(t, detected, 1)
	assert.Equal(t, "b", detected[0].ScheduleAID)
	assert.Equal(t, "z", detected[0].ScheduleBID)
}

func TestDetectSkipsMalformedEntriesWithWarnings(t *testing.T) {
	detector := NewConflictDetector(nil, nil)

	entries := []models.ScheduleDetail{
		detailEntry("bad-clock", "room-1", "inst-1", "Monday", "8 o'clock", "10:00"),
		detailEntry("inverted", "room-1", "inst-1", "Monday", "10:00", "09:00"),
		detailEntry("bad-day", "room-1", "inst-1", "Sunday", "08:00", "10:00"),
		detailEntry("ok-1", "room-1", "inst-1", "Monday", "08:00", "10:00"),
		detailEntry("ok-2", "room-1", "inst-2", "Monday", "09:00", "11:00"),
	}

	detected, warnings := detector.Detect(entries)
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "bad-clock")
	assert.Contains(t, warnings[1], "inverted")
	assert.Contains(t, warnings[2], "bad-day")

	room := roomConflicts(detected)
	require.Len(t, room, 1)
	assert.Equal(t, "ok-1", room[0].ScheduleAID)
}

func TestBuildSyncPlanPartitionsDetectedAndExisting(t *testing.T) {
	detected := []DetectedConflict{
		{Type: models.ConflictTypeRoom, ScheduleAID: "a", ScheduleBID: "b", Description: "fresh text"},
		{Type: models.ConflictTypeRoom, ScheduleAID: "c", ScheduleBID: "d", Description: "new pair"},
	}
	existing := []models.Conflict{
		{ID: "conf-1", ScheduleAID: "a", ScheduleBID: "b", ConflictType: models.ConflictTypeRoom, Status: models.ConflictStatusResolved, Description: "old text"},
		{ID: "conf-2", ScheduleAID: "x", ScheduleBID: "y", ConflictType: models.ConflictTypeRoom, Status: models.ConflictStatusPending},
	}

	plan := BuildSyncPlan(detected, existing)

	require.Len(t, plan.Inserts, 1)
	assert.Equal(t, "c", plan.Inserts[0].ScheduleAID)
	assert.Equal(t, models.ConflictStatusPending, plan.Inserts[0].Status)

	require.Len(t, plan.Preserved, 1)
	assert.Equal(t, "conf-1", plan.Preserved[0].ID)
	assert.Equal(t, models.ConflictStatusResolved, plan.Preserved[0].Status)
	assert.Equal(t, "fresh text", plan.Preserved[0].Description)

	require.Len(t, plan.Stale, 1)
	assert.Equal(t, "conf-2", plan.Stale[0].ID)
}

func TestBuildSyncPlanIsIdempotent(t *testing.T) {
	detector := NewConflictDetector([]ConflictRule{RoomDoubleBookingRule{}}, nil)
	entries := []models.ScheduleDetail{
		detailEntry("a", "room-105", "inst-1", "Monday", "08:00", "10:00"),
		detailEntry("b", "room-105", "inst-2", "Monday", "09:00", "11:00"),
	}

	detected, _ := detector.Detect(entries)
	first := BuildSyncPlan(detected, nil)
	require.Len(t, first.Inserts, 1)

	stored := first.Inserts
	stored[0].ID = "conf-1"
	stored[0].Status = models.ConflictStatusResolved

	detectedAgain, _ := detector.Detect(entries)
	second := BuildSyncPlan(detectedAgain, stored)
	assert.Empty(t, second.Inserts)
	assert.Empty(t, second.Stale)
	require.Len(t, second.Preserved, 1)
	assert.Equal(t, models.ConflictStatusResolved, second.Preserved[0].Status)
}

func TestBuildSyncPlanDeduplicatesDetectedPairs(t *testing.T) {
	detected := []DetectedConflict{
		{Type: models.ConflictTypeRoom, ScheduleAID: "a", ScheduleBID: "b"},
		{Type: models.ConflictTypeRoom, ScheduleAID: "a", ScheduleBID: "b"},
	}
	plan := BuildSyncPlan(detected, nil)
	assert.Len(t, plan.Inserts, 1)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		raw     string
		minutes int
		ok      bool
	}{
		{"07:00", 420, true},
		{"13:30", 810, true},
		{"07:00:00", 420, true},
		{"24:00", 0, false},
		{"07:60", 0, false},
		{"seven", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := parseClock(tc.raw)
		if tc.ok {
			require.NoError(t, err, tc.raw)
			assert.Equal(t, tc.minutes, got, tc.raw)
		} else {
			assert.Error(t, err, tc.raw)
		}
	}
}

func TestFormatClock12(t *testing.T) {
	assert.Equal(t, "12:00 AM", formatClock12(0))
	assert.Equal(t, "07:30 AM", formatClock12(450))
	assert.Equal(t, "12:15 PM", formatClock12(735))
	assert.Equal(t, "01:00 PM", formatClock12(780))
	assert.Equal(t, "11:59 PM", formatClock12(1439))
}
