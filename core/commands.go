package core

import (
	"rangenode/protocol"
	"sync/atomic"
)

// InitCoreCommands registers the protocol bootstrap and housekeeping
// messages. Registration order matters for the first two entries: before
// the host has the dictionary it only knows identify_response (ID 0) and
// identify (ID 1), so those IDs are fixed.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")       // ID 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // ID 1

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("reset", "", handleReset)

	RegisterResponse("uptime", "high=%u clock=%u")

	RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
	RegisterConstant("REPORT_INTERVAL_MIN_MS", uint32(MinReportIntervalMS))
	RegisterConstant("REPORT_INTERVAL_MAX_MS", uint32(MaxReportIntervalMS))
	RegisterConstant("WATCHDOG_TIMEOUT_MS", uint32(WatchdogTimeoutMS))
}

// handleIdentify returns chunks of the data dictionary.
func handleIdentify(data *[]byte) error {
	// Arguments: offset (uint32), count (uint8)
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	count8, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count := uint8(count8)

	chunk := GetGlobalDictionary().GetChunk(offset, count)

	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})

	return nil
}

// handleGetUptime returns the system uptime.
func handleGetUptime(data *[]byte) error {
	uptime := GetUptime()
	high := uint32(uptime >> 32)
	low := uint32(uptime & 0xFFFFFFFF)

	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, high)
		protocol.EncodeVLQUint(output, low)
	})

	return nil
}

// handleReset triggers a hardware reset of the board.
// The actual reset is deferred until after the ACK is sent to the host.
func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// resetPending is set when a reset command is received. The reset itself
// happens in the main loop once the ACK is on the wire.
var resetPending uint32 // atomic bool

// Global reset handler (set by target-specific code).
var globalResetHandler func()

// SetResetHandler sets the platform-specific reset handler.
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// CheckPendingReset executes a requested reset. Called from the main loop
// after pending output has been written; the handler does not return.
func CheckPendingReset() {
	if atomic.LoadUint32(&resetPending) != 0 {
		if globalResetHandler != nil {
			globalResetHandler()
		}
	}
}

// ResetFirmwareState restores per-session settings. Called when the host
// starts a new session (serial reconnect or sequence reset).
func ResetFirmwareState() {
	resetReportState()
}

// Global transport for sending responses (set by main).
var globalTransport *protocol.Transport

// SetGlobalTransport sets the transport used for responses and telemetry.
func SetGlobalTransport(transport *protocol.Transport) {
	globalTransport = transport
}

// SendResponse frames a response message on the global transport. Without
// a transport (host-side tests) it is a no-op.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}

	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		// All responses are registered at init; an unknown name here is a
		// firmware bug, not a runtime condition.
		panic("response not registered: " + responseName)
	}

	globalTransport.SendMessage(cmd.ID, args)
}
