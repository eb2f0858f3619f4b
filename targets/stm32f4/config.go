//go:build stm32f4disco

package main

import "machine"

// Board wiring. The VL53L1X breakout hangs off I2C1 on its default pins
// and the interrupt line goes to PA0.
const (
	sensorBus    = 0
	sensorSCL    = machine.PB6
	sensorSDA    = machine.PB7
	sensorIntPin = machine.PA0

	// I2C clock for the sensor bus.
	sensorBusHz = 400000
)

// The shared serial link (frames and log text) rides the board's default
// UART on PA2/PA3.
const serialBaud = 115200

// heartbeatPin toggles on every stored sample: one edge per measurement
// on the scope, and a visible flicker while ranging runs.
const (
	enableHeartbeat = true
	heartbeatPin    = machine.LED_ORANGE
)
