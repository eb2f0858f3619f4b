package monitor

import (
	"bytes"
	"compress/zlib"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"rangenode/protocol"
)

const testDictJSON = `{"version":"rangenode-test","build_versions":"go-tinygo",` +
	`"config":{"CLOCK_FREQ":"1000000","REPORT_INTERVAL_MIN_MS":"100"},` +
	`"commands":{"identify offset=%u count=%c":1,"query_range":2,` +
	`"set_report_interval ms=%u":3},` +
	`"responses":{"identify_response offset=%u data=%*s":0,` +
	`"range_state seq=%u dist=%u status=%c clock=%u":4,` +
	`"ranging_status running=%c interval_ms=%u total=%u valid=%u":5},` +
	`"enumerations":{"range_status":{"valid":0,"signal_fail":2}}}`

func deflate(c *qt.C, data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	c.Assert(err, qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)
	return buf.Bytes()
}

func TestParseDictionaryCompressed(t *testing.T) {
	c := qt.New(t)

	dict, err := ParseDictionary(deflate(c, []byte(testDictJSON)))
	c.Assert(err, qt.IsNil)

	c.Check(dict.Version, qt.Equals, "rangenode-test")
	c.Check(dict.BuildVersions, qt.Equals, "go-tinygo")
	c.Check(dict.Config["CLOCK_FREQ"], qt.Equals, "1000000")
	c.Check(dict.Commands["query_range"], qt.Equals, 2)
	c.Check(dict.Responses["range_state seq=%u dist=%u status=%c clock=%u"], qt.Equals, 4)
	c.Check(dict.Enumerations["range_status"]["signal_fail"], qt.Equals, 2)
}

func TestParseDictionaryRawJSON(t *testing.T) {
	c := qt.New(t)

	// The firmware falls back to shipping raw JSON when its compressor
	// fails; the parser must take both forms.
	dict, err := ParseDictionary([]byte(testDictJSON))
	c.Assert(err, qt.IsNil)
	c.Check(dict.Version, qt.Equals, "rangenode-test")
}

func TestParseDictionaryGarbage(t *testing.T) {
	c := qt.New(t)

	_, err := ParseDictionary([]byte{0x01, 0x02, 0x03})
	c.Assert(err, qt.ErrorMatches, "dictionary is neither JSON nor zlib.*")
}

func TestParseEntry(t *testing.T) {
	c := qt.New(t)

	spec, err := parseEntry("range_state seq=%u dist=%u status=%c clock=%u", 4)
	c.Assert(err, qt.IsNil)
	c.Check(spec.ID, qt.Equals, uint16(4))
	c.Check(spec.Name, qt.Equals, "range_state")
	c.Assert(spec.Fields, qt.HasLen, 4)
	c.Check(spec.Fields[0], qt.Equals, FieldSpec{Name: "seq", Conv: "%u"})
	c.Check(spec.Fields[2], qt.Equals, FieldSpec{Name: "status", Conv: "%c"})
}

func TestParseEntryBare(t *testing.T) {
	c := qt.New(t)

	spec, err := parseEntry("query_range", 2)
	c.Assert(err, qt.IsNil)
	c.Check(spec.Name, qt.Equals, "query_range")
	c.Check(spec.Fields, qt.HasLen, 0)
}

func TestParseEntryMalformed(t *testing.T) {
	c := qt.New(t)

	_, err := parseEntry("", 1)
	c.Assert(err, qt.ErrorMatches, "empty dictionary entry")

	_, err = parseEntry("cmd broken", 1)
	c.Assert(err, qt.ErrorMatches, `malformed field "broken" .*`)

	_, err = parseEntry("cmd arg=", 1)
	c.Assert(err, qt.ErrorMatches, `malformed field "arg=" .*`)
}

func TestSpecDecode(t *testing.T) {
	c := qt.New(t)

	spec, err := parseEntry("range_state seq=%u dist=%u status=%c clock=%u", 4)
	c.Assert(err, qt.IsNil)

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 7)
	protocol.EncodeVLQUint(out, 812)
	protocol.EncodeVLQUint(out, 2)
	protocol.EncodeVLQUint(out, 99000)

	frame, err := spec.Decode(out.Result())
	c.Assert(err, qt.IsNil)
	c.Check(frame.Uints["seq"], qt.Equals, uint32(7))
	c.Check(frame.Uints["dist"], qt.Equals, uint32(812))
	c.Check(frame.Uints["status"], qt.Equals, uint32(2))
	c.Check(frame.Uints["clock"], qt.Equals, uint32(99000))

	c.Check(frame.String(), qt.Equals, "range_state seq=7 dist=812 status=2 clock=99000")
}

func TestSpecDecodeBlob(t *testing.T) {
	c := qt.New(t)

	spec, err := parseEntry("identify_response offset=%u data=%*s", 0)
	c.Assert(err, qt.IsNil)

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 40)
	protocol.EncodeVLQBytes(out, []byte("hello"))

	frame, err := spec.Decode(out.Result())
	c.Assert(err, qt.IsNil)
	c.Check(frame.Uints["offset"], qt.Equals, uint32(40))
	c.Check(frame.Blobs["data"], qt.DeepEquals, []byte("hello"))
	c.Check(frame.String(), qt.Equals, "identify_response offset=40 data=<5 bytes>")
}

func TestSpecDecodeTruncated(t *testing.T) {
	c := qt.New(t)

	spec, err := parseEntry("range_state seq=%u dist=%u status=%c clock=%u", 4)
	c.Assert(err, qt.IsNil)

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, 7)

	_, err = spec.Decode(out.Result())
	c.Assert(err, qt.ErrorMatches, "field dist of range_state: .*")
}

func TestDecoderLookups(t *testing.T) {
	c := qt.New(t)

	dict, err := ParseDictionary([]byte(testDictJSON))
	c.Assert(err, qt.IsNil)

	decoder, err := NewDecoder(dict)
	c.Assert(err, qt.IsNil)

	spec, ok := decoder.Response(4)
	c.Assert(ok, qt.IsTrue)
	c.Check(spec.Name, qt.Equals, "range_state")

	_, ok = decoder.Response(99)
	c.Check(ok, qt.IsFalse)

	spec, ok = decoder.Command("set_report_interval")
	c.Assert(ok, qt.IsTrue)
	c.Check(spec.ID, qt.Equals, uint16(3))
	c.Assert(spec.Fields, qt.HasLen, 1)
	c.Check(spec.Fields[0].Name, qt.Equals, "ms")

	_, ok = decoder.Command("no_such_command")
	c.Check(ok, qt.IsFalse)
}

func TestStatusName(t *testing.T) {
	c := qt.New(t)

	dict, err := ParseDictionary([]byte(testDictJSON))
	c.Assert(err, qt.IsNil)

	c.Check(dict.StatusName(0), qt.Equals, "valid")
	c.Check(dict.StatusName(2), qt.Equals, "signal_fail")
	c.Check(dict.StatusName(9), qt.Equals, "9")
}

func TestDictionarySummary(t *testing.T) {
	c := qt.New(t)

	dict, err := ParseDictionary([]byte(testDictJSON))
	c.Assert(err, qt.IsNil)

	summary := dict.Summary()
	c.Check(strings.Contains(summary, "version: rangenode-test"), qt.IsTrue)
	c.Check(strings.Contains(summary, "CLOCK_FREQ = 1000000"), qt.IsTrue)
	c.Check(strings.Contains(summary, "[2] query_range"), qt.IsTrue)
	c.Check(strings.Contains(summary, "range_status: 2 values"), qt.IsTrue)

	// Entries list in message ID order.
	identifyPos := strings.Index(summary, "[1] identify")
	queryPos := strings.Index(summary, "[2] query_range")
	intervalPos := strings.Index(summary, "[3] set_report_interval")
	c.Assert(identifyPos >= 0, qt.IsTrue)
	c.Check(identifyPos < queryPos, qt.IsTrue)
	c.Check(queryPos < intervalPos, qt.IsTrue)
}
