//go:build rp2040

package main

import "machine"

// RPWatchdog implements core.WatchdogDriver on the RP2040 hardware
// watchdog.
type RPWatchdog struct{}

func (RPWatchdog) Start(timeoutMS uint32) error {
	err := machine.Watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: timeoutMS,
	})
	if err != nil {
		return err
	}
	return machine.Watchdog.Start()
}

func (RPWatchdog) Feed() {
	machine.Watchdog.Update()
}
