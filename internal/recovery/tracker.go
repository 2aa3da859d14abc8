package recovery

import (
	"sync"
	"time"
)

// ErrorRecord is a single tracked failure.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
}

// ErrorTracker keeps a rolling window of failures by category plus a
// consecutive-failure count that resets on any success. The orchestrator
// consults the consecutive count for its auto-pause decision; the window
// counts feed health reporting.
type ErrorTracker struct {
	window time.Duration

	mu          sync.Mutex
	records     map[string][]ErrorRecord
	consecutive int
	lastSuccess time.Time
}

// NewErrorTracker creates a tracker with the given rolling window.
func NewErrorTracker(window time.Duration) *ErrorTracker {
	if window <= 0 {
		window = time.Hour
	}
	return &ErrorTracker{
		window:      window,
		records:     make(map[string][]ErrorRecord),
		lastSuccess: time.Now(),
	}
}

// Record appends a failure in the given category.
func (et *ErrorTracker) Record(category, message string) {
	et.mu.Lock()
	defer et.mu.Unlock()

	now := time.Now()
	et.records[category] = append(et.records[category], ErrorRecord{
		Timestamp: now,
		Category:  category,
		Message:   message,
	})
	et.consecutive++
	et.pruneLocked(category, now)
}

// RecordSuccess resets the consecutive-failure count and stamps the last
// successful update.
func (et *ErrorTracker) RecordSuccess() {
	et.mu.Lock()
	defer et.mu.Unlock()

	et.consecutive = 0
	et.lastSuccess = time.Now()
}

// ConsecutiveErrors returns the number of failures since the last success.
func (et *ErrorTracker) ConsecutiveErrors() int {
	et.mu.Lock()
	defer et.mu.Unlock()
	return et.consecutive
}

// Count returns the number of failures in the category within the window.
func (et *ErrorTracker) Count(category string) int {
	et.mu.Lock()
	defer et.mu.Unlock()

	et.pruneLocked(category, time.Now())
	return len(et.records[category])
}

// Rate returns failures per minute for the category over the window.
func (et *ErrorTracker) Rate(category string) float64 {
	return float64(et.Count(category)) / et.window.Minutes()
}

// Counts returns the in-window failure count for every category.
func (et *ErrorTracker) Counts() map[string]int {
	et.mu.Lock()
	defer et.mu.Unlock()

	now := time.Now()
	out := make(map[string]int, len(et.records))
	for category := range et.records {
		et.pruneLocked(category, now)
		if n := len(et.records[category]); n > 0 {
			out[category] = n
		}
	}
	return out
}

// LastSuccess returns the time of the last successful update.
func (et *ErrorTracker) LastSuccess() time.Time {
	et.mu.Lock()
	defer et.mu.Unlock()
	return et.lastSuccess
}

// Clear drops all history and resets the consecutive count.
func (et *ErrorTracker) Clear() {
	et.mu.Lock()
	defer et.mu.Unlock()

	et.records = make(map[string][]ErrorRecord)
	et.consecutive = 0
}

// pruneLocked lazily drops records outside the window. Callers hold et.mu.
func (et *ErrorTracker) pruneLocked(category string, now time.Time) {
	recs := et.records[category]
	cutoff := now.Add(-et.window)
	i := 0
	for i < len(recs) && !recs[i].Timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		et.records[category] = append(recs[:0], recs[i:]...)
	}
	if len(et.records[category]) == 0 {
		delete(et.records, category)
	}
}
