// Package wire implements the length-delimited, self-describing binary
// encoding spec.md §6 requires for every Controller RPC body and for the
// Leader/Worker RPC kinds in §4.5. Bodies are msgpack (self-describing,
// unlike a bare gob stream), framed with a 4-byte big-endian length prefix
// so a reader never has to guess where one message ends and the next
// begins on a persistent connection.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameBytes bounds a single frame to guard against a corrupt or
// malicious length prefix forcing an unbounded allocation.
const maxFrameBytes = 64 << 20 // 64 MiB

// Encode msgpack-encodes v and returns the length-prefixed frame.
func Encode(v any) ([]byte, error) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	copy(frame[4:], body)
	return frame, nil
}

// Decode reads one length-prefixed frame from r and msgpack-decodes it
// into out.
func Decode(r io.Reader, out any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("wire: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return fmt.Errorf("wire: frame of %d bytes exceeds %d byte limit", n, maxFrameBytes)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("wire: read body: %w", err)
	}
	return msgpack.Unmarshal(body, out)
}

// Marshal is a convenience wrapper for callers that just want the raw
// msgpack bytes without the length prefix (e.g. an HTTP body, where
// Content-Length already delimits the frame).
func Marshal(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal is the counterpart to Marshal.
func Unmarshal(b []byte, out any) error {
	if err := msgpack.Unmarshal(b, out); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	return nil
}

// ContentType is the HTTP Content-Type used for every Controller RPC body.
const ContentType = "application/vnd.flowmesh.msgpack"
