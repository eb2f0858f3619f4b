//go:build stm32f4disco

package main

import (
	"device/arm"
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
)

func main() {
	InitSerial()

	InitClock()
	core.TimerInit()

	core.InitCoreCommands()
	core.InitRangingCommands()

	i2cDriver := NewSTM32I2CDriver()
	core.SetI2CDriver(i2cDriver)
	core.SetGPIODriver(NewSTM32GPIODriver())
	core.SetWatchdogDriver(STM32Watchdog{})

	sensorReady := initSensor(i2cDriver)

	if enableHeartbeat {
		hbPin := core.GPIOPin(heartbeatPin)
		core.SetMeasurementHook(func() {
			// One edge per stored sample.
			v, _ := core.MustGPIO().GetPin(hbPin)
			core.MustGPIO().SetPin(hbPin, !v)
		})
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
		writeSerialOut()
	})
	core.SetGlobalTransport(transport)

	core.SetResetHandler(func() {
		arm.SystemReset()
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

	go serialReaderLoop()

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
				writeSerialOut()
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
func initSensor(i2cDriver *STM32I2CDriver) bool {
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

// serialReaderLoop feeds the input FIFO from the UART in its own
// goroutine.
func serialReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go serialReaderLoop()
		}
	}()

	for {
		if serialAvailable() > 0 {
			data, err := serialReadByte()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
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

// writeSerialOut drains the output buffer onto the shared UART.
func writeSerialOut() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}

	if _, err := writeFrames(result); err != nil {
		msgerrors++
		return
	}
	outputBuffer.Reset()
}
