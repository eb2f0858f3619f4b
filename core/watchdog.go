package core

// WatchdogDriver is the abstract hardware watchdog interface.
type WatchdogDriver interface {
	// Start arms the watchdog. Once armed it resets the board unless fed
	// within the timeout.
	Start(timeoutMS uint32) error

	// Feed resets the watchdog countdown.
	Feed()
}

const (
	// WatchdogTimeoutMS is the reset deadline.
	WatchdogTimeoutMS = 1000

	// WatchdogFeedIntervalMS is the feeder task period.
	WatchdogFeedIntervalMS = 200
)

// Global singleton used by core code.
var watchdogDriver WatchdogDriver

// SetWatchdogDriver is called by target-specific code to register its
// driver.
func SetWatchdogDriver(d WatchdogDriver) {
	watchdogDriver = d
}

// MustWatchdog returns the configured driver or panics if missing.
func MustWatchdog() WatchdogDriver {
	if watchdogDriver == nil {
		panic("watchdog driver not configured")
	}
	return watchdogDriver
}

// FeederTask feeds the hardware watchdog.
var FeederTask = &Task{
	Name:     "watchdog",
	Priority: PriorityLow,
	Run:      feedWatchdog,
}

var watchdogTimer Timer

// StartWatchdog arms the watchdog and schedules the periodic feeder. If
// the main loop stalls the feeder stops running and the board resets.
func StartWatchdog() error {
	if err := MustWatchdog().Start(WatchdogTimeoutMS); err != nil {
		return err
	}
	MustWatchdog().Feed()

	RegisterTask(FeederTask)
	watchdogTimer.Handler = feederTimerHandler
	watchdogTimer.WakeTime = GetTime() + TimerFromMS(WatchdogFeedIntervalMS)
	ScheduleTimer(&watchdogTimer)

	Trace("watchdog set up")
	return nil
}

func feederTimerHandler(t *Timer) uint8 {
	FeederTask.Pend()
	t.WakeTime = currentTime + TimerFromMS(WatchdogFeedIntervalMS)
	return SF_RESCHEDULE
}

func feedWatchdog() {
	Trace("feeding the watchdog!")
	MustWatchdog().Feed()
}
