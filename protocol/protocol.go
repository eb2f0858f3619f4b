// Package protocol implements the framed serial link between the ranging
// firmware and the host monitor.
//
// Frames share the serial line with plain text log output. Each frame is
//
//	[length][sequence][payload...][crc16 hi][crc16 lo][0x7E]
//
// where length covers the whole frame, the sequence byte carries 0x10 in its
// high bits, and the payload is a VLQ message ID followed by VLQ-encoded
// fields as published in the message dictionary. Text output never contains
// the 0x7E sync byte, so a receiver can always resynchronize on it.
package protocol

// Version identifies the firmware build to the host.
const Version = "0.1.0"

const (
	MessageMax = 512 // output scratch size, several frames may batch per flush

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)
