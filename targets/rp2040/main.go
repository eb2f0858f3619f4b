//go:build rp2040

package main

import (
	"machine"
	"rangenode/core"
	"rangenode/protocol"
	"time"

	"tinygo.org/x/drivers"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	// Debug counters
	messagesReceived uint32
	messagesSent     uint32
	msgerrors        uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Clear any watchdog state carried across a reset; the watchdog is
	// rearmed once boot completes.
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitLogUART()

	InitClock()
	core.TimerInit()

	core.InitCoreCommands()
	core.InitRangingCommands()

	i2cDriver := NewRPI2CDriver()
	core.SetI2CDriver(i2cDriver)
	core.SetGPIODriver(NewRPGPIODriver())
	core.SetWatchdogDriver(RPWatchdog{})

	sensorReady := initSensor(i2cDriver)

	if enableStrobe {
		strobe, strobeErr := NewMeasurementStrobe(strobePin)
		if strobeErr != nil {
			core.Warn("strobe init failed: " + strobeErr.Error())
		} else {
			core.SetMeasurementHook(strobe.Fire)
		}
	}

	if enableDisplay {
		if dispErr := InitDisplay(i2cDriver); dispErr != nil {
			core.Warn("display init failed: " + dispErr.Error())
		}
	}

	// Build and cache the dictionary after all commands, constants and
	// enumerations are registered.
	core.GetGlobalDictionary().BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, handleCommand)
	transport.SetResetCallback(func() {
		// Clear buffers and per-session settings on host reset.
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})
	// The host's send path blocks until the ACK arrives, so ACKs must not
	// queue behind telemetry.
	transport.SetFlushCallback(func() {
		writeUSB()
	})
	core.SetGlobalTransport(transport)

	// Reset through the watchdog rather than ARM SYSRESETREQ; it handles
	// USB re-enumeration better on the RP2040.
	core.SetResetHandler(func() {
		machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
		machine.Watchdog.Start()
		for {
			time.Sleep(1 * time.Millisecond)
		}
	})

	if wdErr := core.StartWatchdog(); wdErr != nil {
		core.Warn("watchdog start failed: " + wdErr.Error())
	}
	core.StartReporting()

	if sensorReady {
		if startErr := core.StartRanging(); startErr != nil {
			core.Warn("ranging start failed: " + startErr.Error())
		}
	}

	core.Info("init done!")

	go usbReaderLoop()

	for {
		// A panicking handler must not take the board down.
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				originalLen := len(data)
				inputBuf := protocol.NewSliceInputBuffer(data)

				transport.Receive(inputBuf)
				messagesReceived++

				consumed := originalLen - inputBuf.Available()
				if consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
				messagesSent++
			}

			// Runs after the output flush so a reset command's ACK is on
			// the wire before the board goes down.
			core.CheckPendingReset()

			core.ProcessTimers()
			core.RunPendingTasks()
		}()

		// Yield to the reader goroutine.
		time.Sleep(10 * time.Microsecond)
	}
}

// initSensor configures the sensor bus, probes the VL53L1X and arms the
// data-ready interrupt. A false return leaves the board serving commands
// with ranging offline.
func initSensor(i2cDriver *RPI2CDriver) bool {
	if err := i2cDriver.ConfigureBus(sensorBus, sensorBusHz); err != nil {
		core.Warn("sensor bus init failed: " + err.Error())
		return false
	}

	busAny, err := i2cDriver.GetMachineBus(sensorBus)
	if err != nil {
		core.Warn("sensor bus lookup failed: " + err.Error())
		return false
	}

	sensor := core.NewVL53L1X(busAny.(drivers.I2C))
	if err := sensor.Setup(); err != nil {
		core.Warn("sensor init failed: " + err.Error())
		return false
	}

	core.SetRangeSensor(sensor)

	if err := core.BindDataReady(core.GPIOPin(sensorIntPin)); err != nil {
		core.Warn("sensor interrupt bind failed: " + err.Error())
		return false
	}
	return true
}

// usbReaderLoop feeds the input FIFO from USB in its own goroutine.
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// First bytes after a disconnect mean the host is back; start
			// the session fresh.
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				core.ResetFirmwareState()
				messagesReceived = 0
				messagesSent = 0
				consecutiveWriteFailures = 0
			}

			written := inputBuffer.Write([]byte{data})
			if written == 0 {
				// FIFO full; drop and let the link-level retry recover.
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// handleCommand dispatches received commands to the command registry.
func handleCommand(cmdID uint16, data *[]byte) error {
	return core.DispatchCommand(cmdID, data)
}

// writeUSB drains the output buffer to USB, handling partial writes and
// disconnect detection.
func writeUSB() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				// Host is gone; drop stale data instead of retrying it
				// against a dead endpoint.
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}

	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}

// utoa converts an unsigned value without pulling in strconv.
func utoa(v uint32) string {
	if v == 0 {
		return "0"
	}

	var buf [10]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}
