package monitor

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"rangenode/host/serial"
	"rangenode/protocol"
)

// Bootstrap message IDs, fixed before the dictionary is known.
const (
	identifyResponseID = 0
	identifyID         = 1
)

// identifyChunkSize keeps each identify_response inside the 64-byte frame
// budget: 40 data bytes plus offset, length prefix and framing.
const identifyChunkSize = 40

// maxIdentifyRounds caps dictionary retrieval against a firmware that never
// reports the end of the blob.
const maxIdentifyRounds = 1000

// SampleHandler receives each decoded range sample.
type SampleHandler func(Sample)

// FrameHandler receives decoded non-sample telemetry frames.
type FrameHandler func(*Frame)

// Board is one connected range node. It owns the serial port, the message
// dictionary and the decode path for incoming telemetry.
type Board struct {
	transport *protocol.HostTransport
	port      serial.Port

	// mu guards the dictionary, decoder and handlers: the transport's read
	// goroutine consults them while the console replaces them.
	mu         sync.RWMutex
	dictionary *Dictionary
	decoder    *Decoder
	rawDict    []byte

	sampleHandler SampleHandler
	frameHandler  FrameHandler
	textHandler   protocol.TextHandler

	connected bool
}

// NewBoard creates a Board that is not yet connected.
func NewBoard() *Board {
	return &Board{}
}

// Connect opens the serial device with default settings.
func (b *Board) Connect(device string) error {
	return b.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens the port and starts the receive loop. The
// dictionary is not retrieved yet; call RetrieveDictionary next.
func (b *Board) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	b.Attach(port)

	// Give the firmware time to finish booting if opening the port reset it.
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Attach starts a session over an already open port.
func (b *Board) Attach(port serial.Port) {
	b.port = port
	b.transport = protocol.NewHostTransport(port)
	b.transport.SetResponseHandler(b.handleResponse)
	b.transport.SetTextHandler(b.emitText)
	b.connected = true
}

// Close shuts down the transport and the port.
func (b *Board) Close() error {
	if b.transport != nil {
		if err := b.transport.Close(); err != nil {
			return err
		}
	}
	b.connected = false
	return nil
}

// IsConnected reports whether a session is open.
func (b *Board) IsConnected() bool {
	return b.connected
}

// OnSample installs the handler called for each decoded range sample.
func (b *Board) OnSample(handler SampleHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sampleHandler = handler
}

// OnFrame installs the handler called for decoded non-sample frames.
func (b *Board) OnFrame(handler FrameHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameHandler = handler
}

// OnText installs the handler for log text interleaved with the frames.
func (b *Board) OnText(handler protocol.TextHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.textHandler = handler
}

// RetrieveDictionary pulls the complete dictionary from the firmware in
// identify chunks, inflates it and builds the frame decoder.
func (b *Board) RetrieveDictionary() error {
	if !b.connected {
		return fmt.Errorf("not connected")
	}

	var blob bytes.Buffer
	offset := uint32(0)

	for i := 0; i < maxIdentifyRounds; i++ {
		chunk, err := b.sendIdentify(offset, identifyChunkSize)
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", offset, err)
		}

		if len(chunk) == 0 {
			break
		}

		blob.Write(chunk)
		offset += uint32(len(chunk))

		if len(chunk) < identifyChunkSize {
			break
		}
	}

	dict, err := ParseDictionary(blob.Bytes())
	if err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}

	decoder, err := NewDecoder(dict)
	if err != nil {
		return fmt.Errorf("failed to index dictionary: %w", err)
	}

	b.mu.Lock()
	b.rawDict = blob.Bytes()
	b.dictionary = dict
	b.decoder = decoder
	b.mu.Unlock()

	return nil
}

// sendIdentify requests one dictionary chunk and waits for the matching
// identify_response. Telemetry frames interleaved with the retrieval are
// skipped here; the async handler already saw them.
func (b *Board) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := b.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send identify: %w", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no identify response within 2s")
		}

		resp, err := b.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, fmt.Errorf("failed to receive identify response: %w", err)
		}

		payload := resp.Payload
		msgID, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			continue
		}
		if msgID != identifyResponseID {
			continue
		}

		respOffset, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response offset: %w", err)
		}
		if respOffset != offset {
			// Stale response from an earlier retry.
			continue
		}

		data, err := protocol.DecodeVLQBytes(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode chunk data: %w", err)
		}
		return data, nil
	}
}

// SendNamed sends a dictionary command by name with positional numeric
// arguments.
func (b *Board) SendNamed(name string, args ...uint32) error {
	if !b.connected {
		return fmt.Errorf("not connected")
	}

	b.mu.RLock()
	decoder := b.decoder
	b.mu.RUnlock()
	if decoder == nil {
		return fmt.Errorf("dictionary not loaded")
	}

	spec, ok := decoder.Command(name)
	if !ok {
		return fmt.Errorf("unknown command: %s", name)
	}
	if len(args) != len(spec.Fields) {
		return fmt.Errorf("%s takes %d arguments, got %d", name, len(spec.Fields), len(args))
	}

	return b.transport.SendCommand(spec.ID, func(output protocol.OutputBuffer) {
		for _, value := range args {
			protocol.EncodeVLQUint(output, value)
		}
	})
}

// Dictionary returns the parsed dictionary, nil before retrieval.
func (b *Board) Dictionary() *Dictionary {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dictionary
}

// RawDictionary returns the dictionary blob as retrieved, still compressed.
func (b *Board) RawDictionary() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rawDict
}

// handleResponse decodes each received frame on the transport's read
// goroutine and fans it out to the installed handlers.
func (b *Board) handleResponse(msgID uint16, data *[]byte) error {
	// Dictionary chunks are consumed synchronously by sendIdentify.
	if msgID == identifyResponseID {
		return nil
	}

	b.mu.RLock()
	decoder := b.decoder
	sampleHandler := b.sampleHandler
	frameHandler := b.frameHandler
	b.mu.RUnlock()

	if decoder == nil {
		return nil
	}

	spec, ok := decoder.Response(msgID)
	if !ok {
		return nil
	}

	frame, err := spec.Decode(*data)
	if err != nil {
		return err
	}

	if spec.Name == "range_state" && sampleHandler != nil {
		sampleHandler(frameSample(frame))
		return nil
	}

	if frameHandler != nil {
		frameHandler(frame)
	}
	return nil
}

func (b *Board) emitText(data []byte) {
	b.mu.RLock()
	handler := b.textHandler
	b.mu.RUnlock()

	if handler != nil {
		handler(data)
	}
}

// Sample is one range_state frame in engineering units.
type Sample struct {
	Seq        uint32    `json:"seq"`
	DistanceMM uint32    `json:"distance_mm"`
	Status     uint32    `json:"status"`
	Clock      uint32    `json:"clock"`
	Received   time.Time `json:"received"`
}

// Valid reports whether the sensor flagged the range as good.
func (s Sample) Valid() bool {
	return s.Status == 0
}

func frameSample(f *Frame) Sample {
	return Sample{
		Seq:        f.Uints["seq"],
		DistanceMM: f.Uints["dist"],
		Status:     f.Uints["status"],
		Clock:      f.Uints["clock"],
		Received:   time.Now(),
	}
}
