//go:build rp2040

package main

import "machine"

// Board wiring. The defaults match a Pico with the VL53L1X breakout on
// I2C0 and its interrupt line on GP22.
const (
	sensorBus    = 0
	sensorSDA    = machine.GP16
	sensorSCL    = machine.GP17
	sensorIntPin = machine.GP22

	// I2C clock for the sensor bus.
	sensorBusHz = 400000
)

// Optional peripherals. Both are compile-time switches so the binary
// stays small when the hardware is absent.
const (
	// enableStrobe pulses strobePin after every stored sample, for scope
	// correlation of measurement timing.
	enableStrobe = true
	strobePin    = machine.GP15

	// enableDisplay drives an SSD1306 on the display bus with the latest
	// range readout.
	enableDisplay = false
	displayBus    = 1
	displaySDA    = machine.GP2
	displaySCL    = machine.GP3
	displayBusHz  = 400000
	displayAddr   = 0x3C
)

// Log output UART.
const (
	logBaud = 115200
	logTX   = machine.GP0
	logRX   = machine.GP1
)
