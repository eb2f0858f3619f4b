package core

// TimerFreq is the tick rate of the core time base: one tick per
// microsecond. Must stay a whole multiple of 1000000 for the conversion
// helpers to be exact.
const TimerFreq = 1000000

// uptimeSource is an optional 64-bit hardware counter reader installed by
// the target (the RP2040 has a true 64-bit timer, for example).
var uptimeSource func() uint64

// GetTime returns the current system time in timer ticks.
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time. Targets call this from the main
// loop with the hardware counter value; tests drive it directly.
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// SetUptimeSource installs a 64-bit uptime reader.
func SetUptimeSource(fn func() uint64) {
	uptimeSource = fn
}

// GetUptime returns the 64-bit uptime in timer ticks. Without a hardware
// source it falls back to the 32-bit system time.
func GetUptime() uint64 {
	if uptimeSource != nil {
		return uptimeSource()
	}
	return uint64(GetTime())
}

// TimerFromUS converts microseconds to timer ticks.
func TimerFromUS(us uint32) uint32 {
	return us * (TimerFreq / 1000000)
}

// TimerFromMS converts milliseconds to timer ticks.
func TimerFromMS(ms uint32) uint32 {
	return ms * (TimerFreq / 1000)
}

// TimerToUS converts timer ticks to microseconds.
func TimerToUS(ticks uint32) uint32 {
	return ticks / (TimerFreq / 1000000)
}

// TimerInit clears the timer list and time base. Call once at boot before
// scheduling anything.
func TimerInit() {
	state := disableInterrupts()
	timerList = nil
	currentTime = 0
	restoreInterrupts(state)
	setSystemTicks(0)
}

// ProcessTimers samples the time base and fires due timers.
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
