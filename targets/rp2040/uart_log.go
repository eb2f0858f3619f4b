//go:build rp2040

package main

import (
	"machine"
	"rangenode/core"
)

var (
	logUART    *machine.UART
	logEnabled bool
)

// InitLogUART brings up UART0 for the text log and hands it to the core
// logger. Log lines stay off the USB link so they never interleave with
// protocol frames.
func InitLogUART() {
	logUART = machine.UART0

	err := logUART.Configure(machine.UARTConfig{
		BaudRate: logBaud,
		TX:       logTX,
		RX:       logRX,
	})
	if err != nil {
		logEnabled = false
		return
	}
	logEnabled = true

	core.SetDebugWriter(writeLogLine)
	core.InitAsyncLog()
}

// writeLogLine emits one log line with CRLF framing.
func writeLogLine(s string) {
	if !logEnabled || logUART == nil {
		return
	}
	logUART.Write([]byte(s))
	logUART.Write([]byte("\r\n"))
}
