package models

import "time"

// DashboardStats aggregates the admin dashboard counters.
type DashboardStats struct {
	TotalInstructors    int       `json:"total_instructors"`
	TotalRooms          int       `json:"total_rooms"`
	TotalSubjects       int       `json:"total_subjects"`
	TotalSchedules      int       `json:"total_schedules"`
	PendingConflicts    int       `json:"pending_conflicts"`
	ResolvedConflicts   int       `json:"resolved_conflicts"`
	SatisfiedFeedback   int       `json:"satisfied_feedback"`
	UnsatisfiedFeedback int       `json:"unsatisfied_feedback"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// SystemMetrics is a lightweight snapshot of runtime counters exposed through
// the dashboard API.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	DetectionPasses          uint64    `json:"detection_passes"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
