package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestDictionary(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())

	dict.AddConstant("TEST_CONST", uint32(42))
	dict.AddConstant("TEST_STR", "hello")
	dict.AddEnumeration("test_status", []string{"valid", "sigma_fail", "signal_fail"})

	dict.commandReg.Register("test_cmd", "arg=%u", func(data *[]byte) error {
		return nil
	})

	output := string(dict.Generate())
	t.Log("Generated dictionary:\n" + output)

	if !strings.Contains(output, `"version":"rangenode-0.1.0"`) {
		t.Error("Dictionary missing version")
	}
	if !strings.Contains(output, `"TEST_CONST":"42"`) {
		t.Error("Dictionary missing TEST_CONST")
	}
	if !strings.Contains(output, `"TEST_STR":"hello"`) {
		t.Error("Dictionary missing TEST_STR")
	}
	if !strings.Contains(output, `"test_status"`) {
		t.Error("Dictionary missing test_status enumeration")
	}
	if !strings.Contains(output, `"valid":0`) || !strings.Contains(output, `"sigma_fail":1`) {
		t.Error("Dictionary missing test_status values")
	}
	if !strings.Contains(output, `"test_cmd arg=%u"`) {
		t.Error("Dictionary missing test_cmd")
	}
}

func TestDictionaryIsValidJSON(t *testing.T) {
	registry := NewCommandRegistry()
	dict := NewDictionary(registry)

	dict.AddConstant("CLOCK_FREQ", uint32(1000000))
	dict.AddEnumeration("range_status", []string{"valid", "sigma_fail"})
	registry.Register("query_range", "", func(data *[]byte) error { return nil })
	registry.Register("set_report_interval", "ms=%u", func(data *[]byte) error { return nil })
	registry.Register("range_state", "seq=%u dist=%u status=%c clock=%u", nil)

	var parsed struct {
		Version       string                    `json:"version"`
		BuildVersions string                    `json:"build_versions"`
		Config        map[string]string         `json:"config"`
		Commands      map[string]int            `json:"commands"`
		Responses     map[string]int            `json:"responses"`
		Enumerations  map[string]map[string]int `json:"enumerations"`
	}
	if err := json.Unmarshal(dict.Generate(), &parsed); err != nil {
		t.Fatalf("Dictionary is not valid JSON: %v\n%s", err, dict.Generate())
	}

	if parsed.Version != "rangenode-0.1.0" {
		t.Errorf("Unexpected version: %s", parsed.Version)
	}
	if parsed.Config["CLOCK_FREQ"] != "1000000" {
		t.Errorf("Unexpected CLOCK_FREQ: %q", parsed.Config["CLOCK_FREQ"])
	}
	if id, ok := parsed.Commands["query_range"]; !ok || id != 0 {
		t.Errorf("Unexpected query_range entry: %d, %v", id, ok)
	}
	if id, ok := parsed.Responses["range_state seq=%u dist=%u status=%c clock=%u"]; !ok || id != 2 {
		t.Errorf("Unexpected range_state entry: %d, %v", id, ok)
	}
	if parsed.Enumerations["range_status"]["sigma_fail"] != 1 {
		t.Errorf("Unexpected range_status enumeration: %v", parsed.Enumerations["range_status"])
	}
}

func TestBuildDictionaryCompresses(t *testing.T) {
	registry := NewCommandRegistry()
	dict := NewDictionary(registry)

	dict.AddConstant("TEST", uint32(123))
	registry.Register("test_cmd", "arg=%u", func(data *[]byte) error { return nil })

	raw := dict.Generate()
	dict.BuildDictionary()
	compressed := dict.Generate()

	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("Built dictionary is not a zlib stream: %v", err)
	}
	inflated, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("Failed to inflate dictionary: %v", err)
	}
	reader.Close()

	if !bytes.Equal(inflated, raw) {
		t.Errorf("Inflated dictionary differs from JSON: %d bytes vs %d",
			len(inflated), len(raw))
	}
}

func TestDictionaryChunks(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("TEST", uint32(123))

	full := dict.Generate()

	chunk1 := dict.GetChunk(0, 10)
	if len(chunk1) == 0 {
		t.Error("First chunk is empty")
	}
	if len(chunk1) > 10 {
		t.Errorf("First chunk too large: %d bytes", len(chunk1))
	}

	// Reassemble through the chunk interface.
	var assembled []byte
	for offset := uint32(0); ; {
		chunk := dict.GetChunk(offset, 40)
		if len(chunk) == 0 {
			break
		}
		assembled = append(assembled, chunk...)
		offset += uint32(len(chunk))
	}
	if !bytes.Equal(assembled, full) {
		t.Errorf("Chunk reassembly differs: %d bytes vs %d", len(assembled), len(full))
	}

	chunkEnd := dict.GetChunk(uint32(len(full)+100), 10)
	if len(chunkEnd) != 0 {
		t.Error("Chunk beyond end should be empty")
	}

	chunkAtEnd := dict.GetChunk(uint32(len(full)), 10)
	if len(chunkAtEnd) != 0 {
		t.Error("Chunk at end should be empty")
	}
}

func TestInitRegistersConstants(t *testing.T) {
	InitCoreCommands()
	InitRangingCommands()

	dictStr := string(GetGlobalDictionary().generateJSON())

	for _, name := range []string{
		`"CLOCK_FREQ":"1000000"`,
		`"REPORT_INTERVAL_MIN_MS":"100"`,
		`"REPORT_INTERVAL_MAX_MS":"60000"`,
		`"WATCHDOG_TIMEOUT_MS":"1000"`,
	} {
		if !strings.Contains(dictStr, name) {
			t.Errorf("Constant entry missing from dictionary: %s", name)
		}
	}

	t.Logf("Dictionary:\n%s", dictStr)
}
