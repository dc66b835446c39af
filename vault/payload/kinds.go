package payload

import (
	"encoding/binary"
	"errors"
)

func errTruncated(what string) error {
	return errors.New("payload: truncated " + what)
}

// Password is the payload for kind=password: a username/email plus a
// secret, with an optional TOTP seed sibling held as a separate
// two-factor credential rather than folded in here.
type Password struct {
	Username string
	Email    string
	Password string
}

func (*Password) Kind() Kind { return KindPassword }

func (p *Password) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = putString(buf, p.Username)
	buf = putString(buf, p.Email)
	buf = putString(buf, p.Password)

	return buf, nil
}

func (p *Password) UnmarshalBinary(data []byte) error {
	var err error

	p.Username, data, err = takeString(data)
	if err != nil {
		return err
	}

	p.Email, data, err = takeString(data)
	if err != nil {
		return err
	}

	p.Password, _, err = takeString(data)

	return err
}

// CryptoWallet is the payload for kind=crypto-wallet: a mnemonic phrase or
// raw private key plus the wallet's public address.
type CryptoWallet struct {
	Address    string
	Mnemonic   string
	PrivateKey string
}

func (*CryptoWallet) Kind() Kind { return KindCryptoWallet }

func (c *CryptoWallet) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = putString(buf, c.Address)
	buf = putString(buf, c.Mnemonic)
	buf = putString(buf, c.PrivateKey)

	return buf, nil
}

func (c *CryptoWallet) UnmarshalBinary(data []byte) error {
	var err error

	c.Address, data, err = takeString(data)
	if err != nil {
		return err
	}

	c.Mnemonic, data, err = takeString(data)
	if err != nil {
		return err
	}

	c.PrivateKey, _, err = takeString(data)

	return err
}

// SSHKey is the payload for kind=ssh-key: the raw 32-byte Ed25519 seed and
// the comment attached to the public key. Only Ed25519 is supported in v1.
type SSHKey struct {
	Seed    []byte
	Comment string
}

func (*SSHKey) Kind() Kind { return KindSSHKey }

func (s *SSHKey) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s.Seed)))
	buf = append(buf, s.Seed...)
	buf = putString(buf, s.Comment)

	return buf, nil
}

func (s *SSHKey) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return errTruncated("ssh-key seed length")
	}

	n := binary.BigEndian.Uint16(data)
	data = data[2:]

	if len(data) < int(n) {
		return errTruncated("ssh-key seed body")
	}

	s.Seed = append([]byte(nil), data[:n]...)
	data = data[n:]

	comment, _, err := takeString(data)
	if err != nil {
		return err
	}

	s.Comment = comment

	return nil
}

// APIKey is the payload for kind=api-key: a bearer token or key/secret
// pair scoped to a named service.
type APIKey struct {
	Service string
	KeyID   string
	Secret  string
}

func (*APIKey) Kind() Kind { return KindAPIKey }

func (a *APIKey) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = putString(buf, a.Service)
	buf = putString(buf, a.KeyID)
	buf = putString(buf, a.Secret)

	return buf, nil
}

func (a *APIKey) UnmarshalBinary(data []byte) error {
	var err error

	a.Service, data, err = takeString(data)
	if err != nil {
		return err
	}

	a.KeyID, data, err = takeString(data)
	if err != nil {
		return err
	}

	a.Secret, _, err = takeString(data)

	return err
}

// BankCard is the payload for kind=bank-card.
type BankCard struct {
	HolderName string
	Number     string
	Expiry     string
	CVV        string
}

func (*BankCard) Kind() Kind { return KindBankCard }

func (b *BankCard) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = putString(buf, b.HolderName)
	buf = putString(buf, b.Number)
	buf = putString(buf, b.Expiry)
	buf = putString(buf, b.CVV)

	return buf, nil
}

func (b *BankCard) UnmarshalBinary(data []byte) error {
	var err error

	b.HolderName, data, err = takeString(data)
	if err != nil {
		return err
	}

	b.Number, data, err = takeString(data)
	if err != nil {
		return err
	}

	b.Expiry, data, err = takeString(data)
	if err != nil {
		return err
	}

	b.CVV, _, err = takeString(data)

	return err
}

// GameAccount is the payload for kind=game-account.
type GameAccount struct {
	Platform string
	Username string
	Password string
}

func (*GameAccount) Kind() Kind { return KindGameAccount }

func (g *GameAccount) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = putString(buf, g.Platform)
	buf = putString(buf, g.Username)
	buf = putString(buf, g.Password)

	return buf, nil
}

func (g *GameAccount) UnmarshalBinary(data []byte) error {
	var err error

	g.Platform, data, err = takeString(data)
	if err != nil {
		return err
	}

	g.Username, data, err = takeString(data)
	if err != nil {
		return err
	}

	g.Password, _, err = takeString(data)

	return err
}

// ServerConfig is the payload for kind=server-config: host connection
// details for a server, distinct from the SSH key material itself.
type ServerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

func (*ServerConfig) Kind() Kind { return KindServerConfig }

func (s *ServerConfig) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = putString(buf, s.Host)
	buf = putString(buf, s.Port)
	buf = putString(buf, s.Username)
	buf = putString(buf, s.Password)

	return buf, nil
}

func (s *ServerConfig) UnmarshalBinary(data []byte) error {
	var err error

	s.Host, data, err = takeString(data)
	if err != nil {
		return err
	}

	s.Port, data, err = takeString(data)
	if err != nil {
		return err
	}

	s.Username, data, err = takeString(data)
	if err != nil {
		return err
	}

	s.Password, _, err = takeString(data)

	return err
}

// Certificate is the payload for kind=certificate: a PEM-encoded
// certificate and its private key.
type Certificate struct {
	CertPEM string
	KeyPEM  string
}

func (*Certificate) Kind() Kind { return KindCertificate }

func (c *Certificate) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = putString(buf, c.CertPEM)
	buf = putString(buf, c.KeyPEM)

	return buf, nil
}

func (c *Certificate) UnmarshalBinary(data []byte) error {
	var err error

	c.CertPEM, data, err = takeString(data)
	if err != nil {
		return err
	}

	c.KeyPEM, _, err = takeString(data)

	return err
}

// TwoFactor is the payload for kind=two-factor: a TOTP seed and its issuer.
type TwoFactor struct {
	Issuer string
	Seed   string
}

func (*TwoFactor) Kind() Kind { return KindTwoFactor }

func (t *TwoFactor) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = putString(buf, t.Issuer)
	buf = putString(buf, t.Seed)

	return buf, nil
}

func (t *TwoFactor) UnmarshalBinary(data []byte) error {
	var err error

	t.Issuer, data, err = takeString(data)
	if err != nil {
		return err
	}

	t.Seed, _, err = takeString(data)

	return err
}
