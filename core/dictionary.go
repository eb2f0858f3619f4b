package core

import (
	"bytes"
	"sync"

	"rangenode/protocol"
	"rangenode/tinycompress"
)

// Constant is a firmware constant exposed to the host.
type Constant struct {
	Name  string
	Value interface{} // string or integer
}

// Enumeration maps small integer codes to display names (range status
// codes, for example).
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary manages the data dictionary the host retrieves chunkwise via
// identify. It describes every command, response, constant and enumeration
// as zlib-compressed JSON.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cachedDict    []byte // compressed dictionary, built once at boot
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a new dictionary.
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       "rangenode-" + protocol.Version,
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant registers a constant in the global dictionary.
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration registers an enumeration in the global dictionary.
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

// AddConstant adds a constant to the dictionary.
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{
		Name:  name,
		Value: value,
	}
}

// AddEnumeration adds an enumeration to the dictionary.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Copy the values slice: TinyGo's GC may reclaim the caller's slice
	// after its function returns.
	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)

	d.enumerations[name] = &Enumeration{
		Name:   name,
		Values: valuesCopy,
	}
}

// SetVersion sets the firmware version string.
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
}

// SetBuildVersions sets the build versions string.
func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
}

// BuildDictionary builds and caches the compressed dictionary. Call once
// after all commands, constants and enumerations are registered.
func (d *Dictionary) BuildDictionary() {
	// Fetch commands/responses before taking the dictionary lock so the
	// two locks never nest in both orders.
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()

	jsonData := d.buildJSONLockedWithData(commands, responses)

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf)
	_, err := w.Write(jsonData)
	if err == nil {
		err = w.Close()
	}
	if err != nil || buf.Len() == 0 {
		// Ship it raw; the host inflater falls back on plain JSON.
		d.cachedDict = jsonData
		return
	}

	compressed := buf.Bytes()
	d.cachedDict = make([]byte, len(compressed))
	copy(d.cachedDict, compressed)

	Trace("dictionary built: " + itoa(len(jsonData)) + " bytes json, " +
		itoa(len(compressed)) + " compressed")
}

// Generate returns the complete dictionary, compressed if BuildDictionary
// ran, regenerated JSON otherwise.
func (d *Dictionary) Generate() []byte {
	if d.cachedDict != nil {
		return d.cachedDict
	}

	return d.generateJSON()
}

// generateJSON builds the JSON dictionary (acquires read lock).
func (d *Dictionary) generateJSON() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	commands, responses := d.commandReg.GetCommandsAndResponses()
	return d.buildJSONLockedWithData(commands, responses)
}

// buildJSONLockedWithData builds the JSON dictionary with pre-fetched
// command data. Caller must hold the dictionary lock. JSON is assembled
// by hand: encoding/json pulls in reflection, which is a poor trade on
// the small targets.
func (d *Dictionary) buildJSONLockedWithData(commands map[string]int, responses map[string]int) []byte {
	result := make([]byte, 0, 1024)

	result = append(result, []byte(`{"version":"`)...)
	result = append(result, []byte(d.version)...)
	result = append(result, []byte(`","build_versions":"`)...)
	result = append(result, []byte(d.buildVersions)...)
	result = append(result, []byte(`","config":{`)...)

	// Constants, name-sorted for a stable dictionary.
	constNames := make([]string, 0, len(d.constants))
	for name := range d.constants {
		constNames = append(constNames, name)
	}
	sortStrings(constNames)

	first := true
	for _, name := range constNames {
		c := d.constants[name]
		if !first {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, []byte(name)...)
		result = append(result, []byte(`":"`)...)
		result = append(result, []byte(valueToString(c.Value))...)
		result = append(result, '"')
		first = false
	}
	result = append(result, []byte(`},"commands":{`)...)

	result = appendIDMap(result, commands)
	result = append(result, []byte(`},"responses":{`)...)
	result = appendIDMap(result, responses)
	result = append(result, '}')

	if len(d.enumerations) > 0 {
		result = append(result, []byte(`,"enumerations":{`)...)

		enumNames := make([]string, 0, len(d.enumerations))
		for name := range d.enumerations {
			enumNames = append(enumNames, name)
		}
		sortStrings(enumNames)

		firstEnum := true
		for _, name := range enumNames {
			enum := d.enumerations[name]
			if !firstEnum {
				result = append(result, ',')
			}
			result = append(result, '"')
			result = append(result, []byte(name)...)
			result = append(result, []byte(`":{`)...)

			// Values map name to code; empty names are unassigned codes.
			firstValue := true
			for i, value := range enum.Values {
				if value != "" {
					if !firstValue {
						result = append(result, ',')
					}
					result = append(result, '"')
					result = append(result, []byte(value)...)
					result = append(result, []byte(`":`)...)
					result = append(result, []byte(itoa(i))...)
					firstValue = false
				}
			}
			result = append(result, '}')
			firstEnum = false
		}
		result = append(result, '}')
	}

	result = append(result, '}')

	return result
}

// appendIDMap appends a "name format":id JSON object body, ID-sorted.
func appendIDMap(result []byte, entries map[string]int) []byte {
	ids := make([]int, 0, len(entries))
	for _, id := range entries {
		ids = append(ids, id)
	}
	sortInts(ids)

	first := true
	for _, id := range ids {
		for format, entryID := range entries {
			if entryID == id {
				if !first {
					result = append(result, ',')
				}
				result = append(result, '"')
				result = append(result, []byte(format)...)
				result = append(result, []byte(`":`)...)
				result = append(result, []byte(itoa(entryID))...)
				first = false
				break
			}
		}
	}
	return result
}

// sortStrings is a small insertion sort; the sort package costs more
// flash than it is worth for these handful-sized slices.
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// GetChunk returns a copy of the dictionary bytes at offset. Short or
// empty results mean the host has read past the end.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()

	if len(data) == 0 || offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	// Return a copy, not a subslice: the cached dictionary must not be
	// aliased by buffers queued for transmission.
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// GetGlobalDictionary returns the global dictionary instance.
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
