// Package monitor implements the host side of the ranging link: dictionary
// retrieval, telemetry frame decoding, session statistics and optional MQTT
// republishing.
package monitor

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"rangenode/protocol"
)

// Dictionary is the parsed message dictionary retrieved via identify. Map
// keys in Commands and Responses are full format strings ("name arg=%u ...")
// as the firmware registered them.
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// Inflate decompresses a retrieved dictionary blob. The firmware ships the
// dictionary zlib-compressed but falls back to raw JSON when its encoder
// fails, so plain JSON passes through unchanged.
func Inflate(data []byte) ([]byte, error) {
	if len(data) > 0 && data[0] == '{' {
		return data, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dictionary is neither JSON nor zlib: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate dictionary: %w", err)
	}
	return raw, nil
}

// ParseDictionary inflates and unmarshals a retrieved dictionary blob.
func ParseDictionary(data []byte) (*Dictionary, error) {
	raw, err := Inflate(data)
	if err != nil {
		return nil, err
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(raw, dict); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dictionary JSON: %w", err)
	}
	return dict, nil
}

// StatusName resolves a range status code through the dictionary's
// range_status enumeration. Unknown codes render numerically.
func (d *Dictionary) StatusName(code uint32) string {
	for name, value := range d.Enumerations["range_status"] {
		if uint32(value) == code {
			return name
		}
	}
	return strconv.FormatUint(uint64(code), 10)
}

// Summary renders a human-readable digest of the dictionary.
func (d *Dictionary) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "version: %s\n", d.Version)
	if d.BuildVersions != "" {
		fmt.Fprintf(&b, "build: %s\n", d.BuildVersions)
	}

	if len(d.Config) > 0 {
		b.WriteString("config:\n")
		names := make([]string, 0, len(d.Config))
		for name := range d.Config {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s = %s\n", name, d.Config[name])
		}
	}

	fmt.Fprintf(&b, "commands (%d):\n", len(d.Commands))
	for _, entry := range entriesByID(d.Commands) {
		fmt.Fprintf(&b, "  [%d] %s\n", d.Commands[entry], entry)
	}

	fmt.Fprintf(&b, "responses (%d):\n", len(d.Responses))
	for _, entry := range entriesByID(d.Responses) {
		fmt.Fprintf(&b, "  [%d] %s\n", d.Responses[entry], entry)
	}

	if len(d.Enumerations) > 0 {
		fmt.Fprintf(&b, "enumerations (%d):\n", len(d.Enumerations))
		names := make([]string, 0, len(d.Enumerations))
		for name := range d.Enumerations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %d values\n", name, len(d.Enumerations[name]))
		}
	}

	return b.String()
}

// entriesByID returns the map keys sorted by their message ID.
func entriesByID(m map[string]int) []string {
	entries := make([]string, 0, len(m))
	for entry := range m {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return m[entries[i]] < m[entries[j]] })
	return entries
}

// FieldSpec is one "name=%conv" pair from a dictionary format string.
type FieldSpec struct {
	Name string
	Conv string
}

// MessageSpec is one command or response entry split into its name and
// field list.
type MessageSpec struct {
	ID     uint16
	Name   string
	Fields []FieldSpec
}

// parseEntry splits a dictionary key like "range_state seq=%u dist=%u" into
// a MessageSpec.
func parseEntry(entry string, id int) (*MessageSpec, error) {
	parts := strings.Fields(entry)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty dictionary entry")
	}

	spec := &MessageSpec{ID: uint16(id), Name: parts[0]}
	for _, part := range parts[1:] {
		eq := strings.IndexByte(part, '=')
		if eq <= 0 || eq == len(part)-1 {
			return nil, fmt.Errorf("malformed field %q in %q", part, entry)
		}
		spec.Fields = append(spec.Fields, FieldSpec{
			Name: part[:eq],
			Conv: part[eq+1:],
		})
	}
	return spec, nil
}

// Frame is one decoded telemetry frame: the spec it matched plus its field
// values by name.
type Frame struct {
	Spec  *MessageSpec
	Uints map[string]uint32
	Blobs map[string][]byte
}

// Decode consumes the payload bytes following the message ID according to
// the spec's field list. Numeric conversions are all VLQ on the wire; %*s
// fields are length-prefixed byte strings.
func (s *MessageSpec) Decode(payload []byte) (*Frame, error) {
	frame := &Frame{Spec: s, Uints: make(map[string]uint32)}

	for _, field := range s.Fields {
		if field.Conv == "%*s" {
			blob, err := protocol.DecodeVLQBytes(&payload)
			if err != nil {
				return nil, fmt.Errorf("field %s of %s: %w", field.Name, s.Name, err)
			}
			if frame.Blobs == nil {
				frame.Blobs = make(map[string][]byte)
			}
			frame.Blobs[field.Name] = blob
			continue
		}

		value, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("field %s of %s: %w", field.Name, s.Name, err)
		}
		frame.Uints[field.Name] = value
	}

	return frame, nil
}

// String renders the frame in the dictionary's field order.
func (f *Frame) String() string {
	var b strings.Builder
	b.WriteString(f.Spec.Name)

	for _, field := range f.Spec.Fields {
		b.WriteByte(' ')
		b.WriteString(field.Name)
		b.WriteByte('=')
		if field.Conv == "%*s" {
			fmt.Fprintf(&b, "<%d bytes>", len(f.Blobs[field.Name]))
		} else {
			fmt.Fprintf(&b, "%d", f.Uints[field.Name])
		}
	}
	return b.String()
}

// Decoder resolves message IDs and command names against a parsed
// dictionary.
type Decoder struct {
	responses map[uint16]*MessageSpec
	commands  map[string]*MessageSpec
}

// NewDecoder parses every dictionary entry up front so malformed format
// strings surface at connect time, not mid-session.
func NewDecoder(dict *Dictionary) (*Decoder, error) {
	d := &Decoder{
		responses: make(map[uint16]*MessageSpec),
		commands:  make(map[string]*MessageSpec),
	}

	for entry, id := range dict.Responses {
		spec, err := parseEntry(entry, id)
		if err != nil {
			return nil, fmt.Errorf("response %q: %w", entry, err)
		}
		d.responses[spec.ID] = spec
	}

	for entry, id := range dict.Commands {
		spec, err := parseEntry(entry, id)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", entry, err)
		}
		d.commands[spec.Name] = spec
	}

	return d, nil
}

// Response looks up the spec for a received message ID.
func (d *Decoder) Response(id uint16) (*MessageSpec, bool) {
	spec, ok := d.responses[id]
	return spec, ok
}

// Command looks up a command spec by name.
func (d *Decoder) Command(name string) (*MessageSpec, bool) {
	spec, ok := d.commands[name]
	return spec, ok
}
