// Package tinycompress emits the zlib container with stored DEFLATE blocks.
// Any standard inflater reads the output, but the encoder side needs no
// compress/flate, which costs more flash and RAM than the small targets
// can spare.
package tinycompress

import (
	"hash/adler32"
	"io"
)

// maxBlockLen is the stored-block payload limit imposed by the 16-bit
// length field.
const maxBlockLen = 0xFFFF

// Writer is an io.WriteCloser producing a zlib stream. Writes accumulate
// in memory; Close emits the whole container.
type Writer struct {
	output io.Writer
	buf    []byte
}

// NewWriter creates a Writer emitting to w. The buffer is sized for the
// data dictionary up front so Write does not reallocate on the target.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output: w,
		buf:    make([]byte, 0, 4096),
	}
}

// Write accumulates p. Nothing reaches the underlying writer until Close.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Close emits the zlib header, the accumulated data as stored blocks and
// the Adler-32 trailer.
func (w *Writer) Close() error {
	// 0x78 0x9C: 32KB window, default compression level.
	if _, err := w.output.Write([]byte{0x78, 0x9C}); err != nil {
		return err
	}

	data := w.buf
	for {
		n := len(data)
		if n > maxBlockLen {
			n = maxBlockLen
		}

		final := byte(0)
		if n == len(data) {
			final = 1
		}

		length := uint16(n)
		header := []byte{
			final,
			byte(length), byte(length >> 8),
			byte(^length), byte(^length >> 8),
		}
		if _, err := w.output.Write(header); err != nil {
			return err
		}
		if _, err := w.output.Write(data[:n]); err != nil {
			return err
		}

		data = data[n:]
		if final == 1 {
			break
		}
	}

	checksum := adler32.Checksum(w.buf)
	trailer := []byte{
		byte(checksum >> 24),
		byte(checksum >> 16),
		byte(checksum >> 8),
		byte(checksum),
	}
	_, err := w.output.Write(trailer)
	return err
}
