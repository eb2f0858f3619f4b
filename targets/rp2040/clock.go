//go:build rp2040

package main

import (
	"rangenode/core"
	"runtime/volatile"
	"unsafe"
)

// RP2040 timer peripheral registers. The raw counter runs at 1MHz from
// the watchdog tick, matching the core tick rate exactly.
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // raw counter high word
	timerTIMERAWL = timerBase + 0x0C // raw counter low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// InitClock wires the hardware timer into the core time base.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	core.SetUptimeSource(GetHardwareUptime)
}

// GetHardwareTime reads the low 32 bits of the microsecond counter.
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// GetHardwareUptime reads the full 64-bit counter. High must be read on
// both sides of low to catch a rollover mid-read.
func GetHardwareUptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// UpdateSystemTime refreshes the core time base from the hardware counter.
// Called once per main loop pass.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
