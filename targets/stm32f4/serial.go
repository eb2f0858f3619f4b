//go:build stm32f4disco

package main

import (
	"machine"
	"rangenode/core"
	"rangenode/protocol"
	"sync"
)

// Frames and log text share one UART, so writes of either kind must be
// atomic with respect to each other. The monitor separates them by frame
// sync byte and CRC; log lines are kept free of the sync byte.
var serialMu sync.Mutex

// lastWriteWasText tracks whether log text went out since the last frame.
// Text desynchronizes the monitor's parser, which then scans forward to the
// next sync byte; a frame must therefore lead with one or its own body gets
// consumed by the scan. Guarded by serialMu.
var lastWriteWasText bool

// InitSerial brings up the board's default UART and hands the log path to
// the core logger.
func InitSerial() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: serialBaud})

	core.SetDebugWriter(writeLogLine)
	core.InitAsyncLog()
}

func serialAvailable() int {
	return machine.Serial.Buffered()
}

func serialReadByte() (byte, error) {
	return machine.Serial.ReadByte()
}

// writeFrames puts framed protocol data on the wire in one piece, preceded
// by a sync byte whenever log text went out since the last frame.
func writeFrames(data []byte) (int, error) {
	serialMu.Lock()
	defer serialMu.Unlock()

	if lastWriteWasText {
		machine.Serial.WriteByte(protocol.MessageValueSync)
		lastWriteWasText = false
	}

	written := 0
	for written < len(data) {
		n, err := machine.Serial.Write(data[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// writeLogLine emits one log line with CRLF framing. Any sync byte in the
// text is rewritten so the monitor never mistakes log output for a frame
// boundary.
func writeLogLine(s string) {
	serialMu.Lock()
	defer serialMu.Unlock()

	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == protocol.MessageValueSync {
			b = '-'
		}
		machine.Serial.WriteByte(b)
	}
	machine.Serial.Write([]byte("\r\n"))
	lastWriteWasText = true
}
