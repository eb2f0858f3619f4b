package protocol

import (
	"net"
	"testing"
	"time"
)

// buildFrame assembles a command frame the way the host does.
func buildFrame(seq uint8, payload []byte) []byte {
	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	frame := []byte{uint8(msgLen), seq}
	frame = append(frame, payload...)
	crc := CRC16(frame)
	return append(frame, uint8(crc>>8), uint8(crc&0xFF), MessageValueSync)
}

// countAcks counts empty-payload frames in raw output.
func countAcks(t *testing.T, raw []byte) int {
	t.Helper()
	acks := 0
	for len(raw) >= MessageLengthMin {
		msgLen := int(raw[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > len(raw) {
			t.Fatalf("malformed output frame: len byte %d, %d bytes left", msgLen, len(raw))
		}
		if raw[msgLen-MessageTrailerSync] != MessageValueSync {
			t.Fatalf("output frame missing sync byte: %v", raw[:msgLen])
		}
		crc := uint16(raw[msgLen-MessageTrailerCRC])<<8 | uint16(raw[msgLen-MessageTrailerCRC+1])
		if crc != CRC16(raw[:msgLen-MessageTrailerSize]) {
			t.Fatalf("output frame CRC mismatch: %v", raw[:msgLen])
		}
		if msgLen == MessageLengthMin {
			acks++
		}
		raw = raw[msgLen:]
	}
	return acks
}

func TestTransportReceiveCommand(t *testing.T) {
	out := NewScratchOutput()
	var gotID uint16
	var gotArg uint32
	calls := 0

	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		gotID = cmdID
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		gotArg = v
		return nil
	})

	payload := NewScratchOutput()
	EncodeVLQUint(payload, 7)
	EncodeVLQUint(payload, 123)

	tr.Receive(NewSliceInputBuffer(buildFrame(MessageDest, payload.Result())))

	if calls != 1 {
		t.Fatalf("expected 1 handler call, got %d", calls)
	}
	if gotID != 7 || gotArg != 123 {
		t.Errorf("handler got cmd=%d arg=%d, expected cmd=7 arg=123", gotID, gotArg)
	}

	raw := out.Result()
	if countAcks(t, raw) != 1 {
		t.Errorf("expected exactly one ACK in output, got %v", raw)
	}
	// ACK carries the advanced sequence.
	if raw[MessagePositionSeq] != MessageDest+1 {
		t.Errorf("ACK sequence: expected 0x%02x, got 0x%02x", MessageDest+1, raw[MessagePositionSeq])
	}
}

func TestTransportSequenceMismatch(t *testing.T) {
	out := NewScratchOutput()
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		*data = nil
		return nil
	})

	payload := NewScratchOutput()
	EncodeVLQUint(payload, 7)

	// Wrong sequence: frame is valid but not the one expected, so it is
	// not dispatched. The ACK still goes out carrying the wanted sequence,
	// which is what tells the host to retransmit.
	tr.Receive(NewSliceInputBuffer(buildFrame(MessageDest+3, payload.Result())))

	if calls != 0 {
		t.Fatalf("out-of-sequence frame must not be dispatched, got %d calls", calls)
	}

	raw := out.Result()
	if countAcks(t, raw) != 1 {
		t.Fatalf("expected NAK in output, got %v", raw)
	}
	if raw[MessagePositionSeq] != MessageDest {
		t.Errorf("NAK sequence: expected 0x%02x, got 0x%02x", MessageDest, raw[MessagePositionSeq])
	}
}

func TestTransportResyncAfterGarbage(t *testing.T) {
	out := NewScratchOutput()
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		*data = nil
		return nil
	})

	payload := NewScratchOutput()
	EncodeVLQUint(payload, 7)

	// Garbage desynchronizes, the embedded sync byte recovers, and the
	// following frame parses normally.
	stream := []byte{0xDE, 0xAD, 0xBE, MessageValueSync}
	stream = append(stream, buildFrame(MessageDest, payload.Result())...)

	tr.Receive(NewSliceInputBuffer(stream))

	if calls != 1 {
		t.Errorf("expected frame after resync to dispatch, got %d calls", calls)
	}
}

func TestTransportPartialFrame(t *testing.T) {
	out := NewScratchOutput()
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		*data = nil
		return nil
	})

	payload := NewScratchOutput()
	EncodeVLQUint(payload, 9)
	frame := buildFrame(MessageDest, payload.Result())

	// First half arrives, then the rest. The FIFO holds the partial frame
	// across Receive calls.
	fifo := NewFifoBuffer(64)
	fifo.Write(frame[:3])
	tr.Receive(fifo)
	if calls != 0 {
		t.Fatal("partial frame must not dispatch")
	}

	fifo.Write(frame[3:])
	tr.Receive(fifo)
	if calls != 1 {
		t.Errorf("completed frame should dispatch once, got %d calls", calls)
	}
}

func TestTransportHandlerPanic(t *testing.T) {
	out := NewScratchOutput()
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		panic("handler blew up")
	})

	payload := NewScratchOutput()
	EncodeVLQUint(payload, 7)
	frame := buildFrame(MessageDest, payload.Result())

	// Must not propagate the panic.
	tr.Receive(NewSliceInputBuffer(frame))

	if calls != 1 {
		t.Errorf("expected 1 handler call before panic, got %d", calls)
	}
}

func TestTransportEncodeFrameRoundTrip(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, nil)

	tr.SendMessage(42, func(output OutputBuffer) {
		EncodeVLQUint(output, 1500)
		EncodeVLQUint(output, 9)
	})

	raw := out.Result()
	msgLen := int(raw[MessagePositionLen])
	if msgLen != len(raw) {
		t.Fatalf("length byte %d does not match frame size %d", msgLen, len(raw))
	}
	if raw[len(raw)-1] != MessageValueSync {
		t.Fatal("frame missing trailing sync byte")
	}
	crc := uint16(raw[msgLen-MessageTrailerCRC])<<8 | uint16(raw[msgLen-MessageTrailerCRC+1])
	if crc != CRC16(raw[:msgLen-MessageTrailerSize]) {
		t.Fatal("frame CRC mismatch")
	}

	frame := raw[MessageHeaderSize : msgLen-MessageTrailerSize]
	id, err := DecodeVLQUint(&frame)
	if err != nil || id != 42 {
		t.Fatalf("decoded message ID %d (err %v), expected 42", id, err)
	}
	v1, _ := DecodeVLQUint(&frame)
	v2, _ := DecodeVLQUint(&frame)
	if v1 != 1500 || v2 != 9 {
		t.Errorf("decoded args %d, %d; expected 1500, 9", v1, v2)
	}
}

func TestHostDeviceExchange(t *testing.T) {
	hostEnd, deviceEnd := net.Pipe()
	defer deviceEnd.Close()

	received := make(chan uint32, 4)

	// Device side: parse frames, answer each set_target command with a
	// target_echo message, stream everything back through the pipe.
	out := NewScratchOutput()
	var tr *Transport
	tr = NewTransport(out, func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		received <- v
		tr.SendMessage(42, func(o OutputBuffer) {
			EncodeVLQUint(o, v*2)
		})
		return nil
	})
	tr.SetFlushCallback(func() {
		if _, err := deviceEnd.Write(out.Result()); err == nil {
			out.Reset()
		}
	})

	go func() {
		buf := make([]byte, 128)
		for {
			n, err := deviceEnd.Read(buf)
			if err != nil {
				return
			}
			tr.Receive(NewSliceInputBuffer(buf[:n]))
		}
	}()

	host := NewHostTransport(hostEnd)
	defer host.Close()

	for i, arg := range []uint32{123, 456} {
		err := host.SendCommandWithTimeout(7, func(o OutputBuffer) {
			EncodeVLQUint(o, arg)
		}, 2*time.Second)
		if err != nil {
			t.Fatalf("command %d: %v", i, err)
		}

		select {
		case got := <-received:
			if got != arg {
				t.Errorf("command %d: device received %d, expected %d", i, got, arg)
			}
		case <-time.After(time.Second):
			t.Fatalf("command %d: device never saw it", i)
		}

		resp, err := host.ReceiveResponse(2 * time.Second)
		if err != nil {
			t.Fatalf("command %d: no response: %v", i, err)
		}
		payload := resp.Payload
		id, _ := DecodeVLQUint(&payload)
		echo, _ := DecodeVLQUint(&payload)
		if id != 42 || echo != arg*2 {
			t.Errorf("command %d: response id=%d echo=%d, expected id=42 echo=%d", i, id, echo, arg*2)
		}
	}

	// Sequence advanced once per acknowledged command.
	if seq := host.GetCurrentSequence(); seq != MessageDest+2 {
		t.Errorf("host sequence: expected 0x%02x, got 0x%02x", MessageDest+2, seq)
	}
}
