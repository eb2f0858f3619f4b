package monitor

import (
	"fmt"
	"sync"
	"time"
)

// SessionStats accumulates distance samples over a monitor session. Safe
// for concurrent use: the receive goroutine adds while the console renders.
type SessionStats struct {
	mu      sync.Mutex
	count   uint64
	valid   uint64
	minMM   uint32
	maxMM   uint32
	sumMM   uint64
	started time.Time

	now func() time.Time // test hook
}

// NewSessionStats starts an empty session window.
func NewSessionStats() *SessionStats {
	s := &SessionStats{now: time.Now}
	s.started = s.now()
	return s
}

// Add folds one sample in. Invalid samples count toward the total and the
// rate but not the distance aggregates.
func (s *SessionStats) Add(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if !sample.Valid() {
		return
	}

	s.valid++
	if s.valid == 1 || sample.DistanceMM < s.minMM {
		s.minMM = sample.DistanceMM
	}
	if sample.DistanceMM > s.maxMM {
		s.maxMM = sample.DistanceMM
	}
	s.sumMM += uint64(sample.DistanceMM)
}

// Reset starts a fresh session window.
func (s *SessionStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count = 0
	s.valid = 0
	s.minMM = 0
	s.maxMM = 0
	s.sumMM = 0
	s.started = s.now()
}

// Snapshot returns a consistent copy for rendering.
func (s *SessionStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Count:   s.count,
		Valid:   s.valid,
		MinMM:   s.minMM,
		MaxMM:   s.maxMM,
		Elapsed: s.now().Sub(s.started),
	}
	if s.valid > 0 {
		snap.MeanMM = float64(s.sumMM) / float64(s.valid)
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.Rate = float64(s.count) / secs
	}
	return snap
}

// StatsSnapshot is one rendered view of a session.
type StatsSnapshot struct {
	Count   uint64
	Valid   uint64
	MinMM   uint32
	MaxMM   uint32
	MeanMM  float64
	Rate    float64
	Elapsed time.Duration
}

func (s StatsSnapshot) String() string {
	if s.Valid == 0 {
		return fmt.Sprintf("samples=%d valid=0 (%.1f/s over %s)",
			s.Count, s.Rate, s.Elapsed.Round(time.Second))
	}
	return fmt.Sprintf("samples=%d valid=%d min=%dmm max=%dmm mean=%.1fmm (%.1f/s over %s)",
		s.Count, s.Valid, s.MinMM, s.MaxMM, s.MeanMM, s.Rate, s.Elapsed.Round(time.Second))
}
