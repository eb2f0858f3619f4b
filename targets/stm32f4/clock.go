//go:build stm32f4disco

package main

import (
	"rangenode/core"
	"time"
)

// The STM32F4 port has no free-running microsecond counter exposed by the
// machine package, so the core time base derives from the runtime clock.

var bootTime time.Time

// InitClock anchors the time base at boot.
func InitClock() {
	core.RegisterConstant("MCU", "stm32f407")
	bootTime = time.Now()
	core.SetUptimeSource(hardwareUptime)
}

func hardwareUptime() uint64 {
	return uint64(time.Since(bootTime).Microseconds())
}

// UpdateSystemTime refreshes the core time base. Called once per main
// loop pass.
func UpdateSystemTime() {
	core.SetTime(uint32(time.Since(bootTime).Microseconds()))
}
