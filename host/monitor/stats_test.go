package monitor

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

// fixedClock steps a fake time source so rate math is deterministic.
type fixedClock struct {
	at time.Time
}

func (f *fixedClock) now() time.Time {
	return f.at
}

func (f *fixedClock) advance(d time.Duration) {
	f.at = f.at.Add(d)
}

func newTestStats() (*SessionStats, *fixedClock) {
	clock := &fixedClock{at: time.Unix(1700000000, 0)}
	stats := &SessionStats{now: clock.now}
	stats.started = clock.at
	return stats, clock
}

func sampleAt(dist uint32, status uint32) Sample {
	return Sample{Seq: 1, DistanceMM: dist, Status: status}
}

func TestStatsEmpty(t *testing.T) {
	c := qt.New(t)

	stats, clock := newTestStats()
	clock.advance(10 * time.Second)

	snap := stats.Snapshot()
	c.Check(snap.Count, qt.Equals, uint64(0))
	c.Check(snap.Valid, qt.Equals, uint64(0))
	c.Check(snap.Rate, qt.Equals, 0.0)
	c.Check(snap.String(), qt.Equals, "samples=0 valid=0 (0.0/s over 10s)")
}

func TestStatsAggregates(t *testing.T) {
	c := qt.New(t)

	stats, clock := newTestStats()

	stats.Add(sampleAt(300, 0))
	stats.Add(sampleAt(250, 0))
	stats.Add(sampleAt(400, 0))
	clock.advance(5 * time.Second)

	snap := stats.Snapshot()
	c.Check(snap.Count, qt.Equals, uint64(3))
	c.Check(snap.Valid, qt.Equals, uint64(3))
	c.Check(snap.MinMM, qt.Equals, uint32(250))
	c.Check(snap.MaxMM, qt.Equals, uint32(400))
	c.Check(snap.MeanMM, qt.Equals, 950.0/3.0)
	c.Check(snap.Rate, qt.Equals, 3.0/5.0)
}

func TestStatsInvalidSamples(t *testing.T) {
	c := qt.New(t)

	stats, _ := newTestStats()

	stats.Add(sampleAt(300, 0))
	stats.Add(sampleAt(9999, 2)) // signal fail, distance not trusted
	stats.Add(sampleAt(0, 255))  // no sample yet

	snap := stats.Snapshot()
	c.Check(snap.Count, qt.Equals, uint64(3))
	c.Check(snap.Valid, qt.Equals, uint64(1))
	c.Check(snap.MinMM, qt.Equals, uint32(300))
	c.Check(snap.MaxMM, qt.Equals, uint32(300))
	c.Check(snap.MeanMM, qt.Equals, 300.0)
}

func TestStatsMinTracksZeroDistance(t *testing.T) {
	c := qt.New(t)

	stats, _ := newTestStats()

	// A valid 0mm reading must become the minimum, not be confused with
	// the empty-session zero value.
	stats.Add(sampleAt(120, 0))
	stats.Add(sampleAt(0, 0))

	snap := stats.Snapshot()
	c.Check(snap.MinMM, qt.Equals, uint32(0))
	c.Check(snap.MaxMM, qt.Equals, uint32(120))
}

func TestStatsReset(t *testing.T) {
	c := qt.New(t)

	stats, clock := newTestStats()

	stats.Add(sampleAt(300, 0))
	stats.Add(sampleAt(400, 0))
	clock.advance(time.Minute)

	stats.Reset()
	clock.advance(2 * time.Second)
	stats.Add(sampleAt(100, 0))

	snap := stats.Snapshot()
	c.Check(snap.Count, qt.Equals, uint64(1))
	c.Check(snap.Valid, qt.Equals, uint64(1))
	c.Check(snap.MinMM, qt.Equals, uint32(100))
	c.Check(snap.MaxMM, qt.Equals, uint32(100))
	c.Check(snap.Elapsed, qt.Equals, 2*time.Second)
	c.Check(snap.Rate, qt.Equals, 0.5)
}

func TestStatsString(t *testing.T) {
	c := qt.New(t)

	stats, clock := newTestStats()
	stats.Add(sampleAt(250, 0))
	stats.Add(sampleAt(350, 0))
	clock.advance(4 * time.Second)

	c.Check(stats.Snapshot().String(), qt.Equals,
		"samples=2 valid=2 min=250mm max=350mm mean=300.0mm (0.5/s over 4s)")
}
