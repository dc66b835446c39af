// Package wire implements the OpenSSH agent wire protocol's framing and
// message type codes: every message is a 4-byte big-endian length prefix
// followed by that many bytes of payload, the first payload byte being the
// message type.
//
// The numeric codes below are fixed by OpenSSH's PROTOCOL.agent and are
// kept unexported inside golang.org/x/crypto/ssh/agent, so they are
// redeclared here rather than imported.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message type codes, per OpenSSH's PROTOCOL.agent.
const (
	AgentFailure           byte = 5
	AgentSuccess           byte = 6
	AgentRequestIdentities byte = 11
	AgentIdentitiesAnswer  byte = 12
	AgentSignRequest       byte = 13
	AgentSignResponse      byte = 14
)

// MaxMessageSize bounds a single frame to guard against a misbehaving or
// hostile peer claiming an enormous length prefix.
const MaxMessageSize = 256 * 1024

// ReadMessage reads one length-prefixed frame from r and returns its
// message type and payload (payload excludes the type byte itself).
func ReadMessage(r io.Reader) (msgType byte, payload []byte, _ error) {
	var lenBuf [4]byte

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return 0, nil, fmt.Errorf("wire: zero-length message")
	}

	if n > MaxMessageSize {
		return 0, nil, fmt.Errorf("wire: message too large: %d bytes", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}

	return body[0], body[1:], nil
}

// WriteMessage writes msgType and payload as one length-prefixed frame.
func WriteMessage(w io.Writer, msgType byte, payload []byte) error {
	n := 1 + len(payload)

	buf := make([]byte, 4+n)
	binary.BigEndian.PutUint32(buf, uint32(n))
	buf[4] = msgType
	copy(buf[5:], payload)

	_, err := w.Write(buf)

	return err
}

// WriteFailure writes a bare SSH_AGENT_FAILURE response.
func WriteFailure(w io.Writer) error {
	return WriteMessage(w, AgentFailure, nil)
}

// WriteSuccess writes a bare SSH_AGENT_SUCCESS response.
func WriteSuccess(w io.Writer) error {
	return WriteMessage(w, AgentSuccess, nil)
}

// PutUint32 appends n to buf in big-endian form, the encoding used for
// every length and count field inside agent message bodies.
func PutUint32(buf []byte, n uint32) []byte {
	return binary.BigEndian.AppendUint32(buf, n)
}

// PutString appends a 4-byte BE length followed by s, the SSH wire
// "string" encoding used throughout agent messages.
func PutString(buf []byte, s []byte) []byte {
	buf = PutUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// TakeString reads one length-prefixed string from the front of buf and
// returns it along with the remaining bytes.
func TakeString(buf []byte) (s []byte, rest []byte, _ error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("wire: truncated string length")
	}

	n := binary.BigEndian.Uint32(buf)
	buf = buf[4:]

	if uint64(len(buf)) < uint64(n) {
		return nil, nil, fmt.Errorf("wire: truncated string body")
	}

	return buf[:n], buf[n:], nil
}

// TakeUint32 reads one big-endian uint32 from the front of buf.
func TakeUint32(buf []byte) (n uint32, rest []byte, _ error) {
	if len(buf) < 4 {
		return 0, nil, fmt.Errorf("wire: truncated uint32")
	}

	return binary.BigEndian.Uint32(buf), buf[4:], nil
}
