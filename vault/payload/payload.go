// Package payload implements the typed credential payload codec: each
// credential kind marshals to a small versioned binary envelope before it is
// AEAD-sealed by the vault service, and unmarshals back into a concrete Go
// type on reveal.
//
// The envelope format is
//
//	[1-byte format version][1-byte kind][4-byte BE length][payload bytes]
//
// payload bytes are themselves a flat, order-dependent binary encoding of
// the kind's fields (each string field is length-prefixed with a 2-byte BE
// count). This avoids pulling in a general-purpose serialization library
// for what is, per kind, a handful of short strings.
package payload

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies the concrete payload type sealed inside a credential's
// encrypted_data column. Values match the credential.kind column exactly.
type Kind string

const (
	KindPassword      Kind = "password"
	KindCryptoWallet  Kind = "crypto-wallet"
	KindSSHKey        Kind = "ssh-key"
	KindAPIKey        Kind = "api-key"
	KindBankCard      Kind = "bank-card"
	KindGameAccount   Kind = "game-account"
	KindServerConfig  Kind = "server-config"
	KindCertificate   Kind = "certificate"
	KindTwoFactor     Kind = "two-factor"
)

// FormatVersion is the current envelope format version. Bumped whenever the
// flat field encoding below changes shape.
const FormatVersion byte = 1

// Payload is implemented by every concrete credential payload type.
type Payload interface {
	Kind() Kind
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Envelope wraps and unwraps the [Payload] binary form with the version and
// kind header that [vault.Vault] persists as plaintext before sealing.
func Envelope(p Payload) ([]byte, error) {
	body, err := p.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("payload: marshal %s: %w", p.Kind(), err)
	}

	kindByte, ok := kindBytes[p.Kind()]
	if !ok {
		return nil, fmt.Errorf("payload: unknown kind %q", p.Kind())
	}

	buf := make([]byte, 0, 6+len(body))
	buf = append(buf, FormatVersion, kindByte)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(body)))
	buf = append(buf, body...)

	return buf, nil
}

// Unenvelope reads the version/kind/length header and dispatches to the
// matching zero-value [Payload], which is populated by UnmarshalBinary.
func Unenvelope(data []byte) (Payload, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("payload: envelope too short: %d bytes", len(data))
	}

	version := data[0]
	if version != FormatVersion {
		return nil, fmt.Errorf("payload: unsupported format version %d", version)
	}

	kind, ok := byteKinds[data[1]]
	if !ok {
		return nil, fmt.Errorf("payload: unknown kind byte %d", data[1])
	}

	length := binary.BigEndian.Uint32(data[2:6])
	body := data[6:]

	if uint32(len(body)) != length {
		return nil, fmt.Errorf("payload: length mismatch: header says %d, got %d", length, len(body))
	}

	p, err := zeroValue(kind)
	if err != nil {
		return nil, err
	}

	if err := p.UnmarshalBinary(body); err != nil {
		return nil, fmt.Errorf("payload: unmarshal %s: %w", kind, err)
	}

	return p, nil
}

var kindBytes = map[Kind]byte{
	KindPassword:     1,
	KindCryptoWallet: 2,
	KindSSHKey:       3,
	KindAPIKey:       4,
	KindBankCard:     5,
	KindGameAccount:  6,
	KindServerConfig: 7,
	KindCertificate:  8,
	KindTwoFactor:    9,
}

var byteKinds = func() map[byte]Kind {
	m := make(map[byte]Kind, len(kindBytes))
	for k, b := range kindBytes {
		m[b] = k
	}

	return m
}()

func zeroValue(k Kind) (Payload, error) {
	switch k {
	case KindPassword:
		return &Password{}, nil
	case KindCryptoWallet:
		return &CryptoWallet{}, nil
	case KindSSHKey:
		return &SSHKey{}, nil
	case KindAPIKey:
		return &APIKey{}, nil
	case KindBankCard:
		return &BankCard{}, nil
	case KindGameAccount:
		return &GameAccount{}, nil
	case KindServerConfig:
		return &ServerConfig{}, nil
	case KindCertificate:
		return &Certificate{}, nil
	case KindTwoFactor:
		return &TwoFactor{}, nil
	default:
		return nil, fmt.Errorf("payload: unknown kind %q", k)
	}
}

// putString appends a 2-byte BE length prefix followed by s.
func putString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// takeString reads a length-prefixed string from the front of buf and
// returns the string and the remaining bytes.
func takeString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, fmt.Errorf("payload: truncated string length")
	}

	n := binary.BigEndian.Uint16(buf)
	buf = buf[2:]

	if len(buf) < int(n) {
		return "", nil, fmt.Errorf("payload: truncated string body")
	}

	return string(buf[:n]), buf[n:], nil
}
