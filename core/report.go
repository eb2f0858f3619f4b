package core

import (
	"rangenode/protocol"
	"sync/atomic"
)

// Report interval bounds. Host requests outside the range are clamped,
// not rejected.
const (
	DefaultReportIntervalMS = 1000
	MinReportIntervalMS     = 100
	MaxReportIntervalMS     = 60000
)

// ReportTask periodically emits the latest measurement: a range_state
// telemetry frame every period, plus an info log line when a new sample
// arrived since the last report.
var ReportTask = &Task{
	Name:     "report",
	Priority: PriorityLow,
	Run:      reportTaskRun,
}

var (
	reportIntervalMS uint32 = DefaultReportIntervalMS // atomic
	lastReportedSeq  uint32 // report task context only
	reportTimer      Timer

	// reportHook runs on every report with the snapshot (display update).
	reportHook func(Measurement)
)

// SetReportHook installs a function run by the report task with each
// snapshot.
func SetReportHook(fn func(Measurement)) {
	reportHook = fn
}

// ReportIntervalMS returns the current report period.
func ReportIntervalMS() uint32 {
	return atomic.LoadUint32(&reportIntervalMS)
}

// SetReportInterval sets the report period, clamped to the supported
// range, and returns the applied value.
func SetReportInterval(ms uint32) uint32 {
	if ms < MinReportIntervalMS {
		ms = MinReportIntervalMS
	}
	if ms > MaxReportIntervalMS {
		ms = MaxReportIntervalMS
	}
	atomic.StoreUint32(&reportIntervalMS, ms)
	return ms
}

// StartReporting schedules the periodic report timer.
func StartReporting() {
	RegisterTask(ReportTask)
	reportTimer.Handler = reportTimerHandler
	reportTimer.WakeTime = GetTime() + TimerFromMS(ReportIntervalMS())
	ScheduleTimer(&reportTimer)
}

func reportTimerHandler(t *Timer) uint8 {
	ReportTask.Pend()
	// Reschedule from now; a late dispatch must not cause a catch-up burst.
	t.WakeTime = currentTime + TimerFromMS(ReportIntervalMS())
	return SF_RESCHEDULE
}

func reportTaskRun() {
	m := SnapshotMeasurement()

	sendRangeState(m)

	if reportHook != nil {
		reportHook(m)
	}

	if m.Seq != lastReportedSeq {
		lastReportedSeq = m.Seq
		Info("range: " + utoa(uint32(m.DistanceMM)) + "mm status=" +
			utoa(uint32(m.Status)) + " seq=" + utoa(m.Seq))
	}
}

func handleSetReportInterval(data *[]byte) error {
	ms, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	applied := SetReportInterval(ms)
	Info("report interval set to " + utoa(applied) + "ms")
	return nil
}

// resetReportState restores the default period for a fresh host session.
func resetReportState() {
	atomic.StoreUint32(&reportIntervalMS, DefaultReportIntervalMS)
}
