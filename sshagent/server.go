package sshagent

import (
	"context"
	"errors"
	"io"
	"log"
	"net"

	"github.com/ladzaretti/vaultagent/sshagent/wire"
)

// Serve reads length-prefixed agent-protocol frames from conn, dispatches
// them against a, and writes framed responses, until conn is closed or ctx
// is done. The connection is handled sequentially: one request is fully
// answered before the next is read, per spec.md's "no pipelining within a
// connection".
func (a *Agent) Serve(ctx context.Context, conn net.Conn) {
	defer conn.Close() //nolint:errcheck

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, payload, err := wire.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("[vault-agent] read frame: %v", err)
			}

			return
		}

		if err := a.handleMessage(ctx, conn, msgType, payload); err != nil {
			log.Printf("[vault-agent] handle message type %d: %v", msgType, err)
			return
		}
	}
}

func (a *Agent) handleMessage(ctx context.Context, conn net.Conn, msgType byte, payload []byte) error {
	switch msgType {
	case wire.AgentRequestIdentities:
		return a.replyIdentities(conn)
	case wire.AgentSignRequest:
		return a.replySign(ctx, conn, payload)
	default:
		return wire.WriteFailure(conn)
	}
}

func (a *Agent) replyIdentities(conn net.Conn) error {
	identities := a.Identities()

	body := wire.PutUint32(nil, uint32(len(identities)))
	for _, id := range identities {
		body = wire.PutString(body, id.Blob)
		body = wire.PutString(body, []byte(id.Comment))
	}

	return wire.WriteMessage(conn, wire.AgentIdentitiesAnswer, body)
}

// signRequest is the decoded body of a SSH_AGENTC_SIGN_REQUEST message:
// key blob, data to sign, and a flags word (unused - Ed25519 has no
// signature-algorithm variants to negotiate, unlike RSA).
type signRequest struct {
	KeyBlob []byte
	Data    []byte
	Flags   uint32
}

func decodeSignRequest(payload []byte) (*signRequest, error) {
	blob, rest, err := wire.TakeString(payload)
	if err != nil {
		return nil, err
	}

	data, rest, err := wire.TakeString(rest)
	if err != nil {
		return nil, err
	}

	flags, _, err := wire.TakeUint32(rest)
	if err != nil {
		return nil, err
	}

	return &signRequest{KeyBlob: blob, Data: data, Flags: flags}, nil
}

func (a *Agent) replySign(ctx context.Context, conn net.Conn, payload []byte) error {
	req, err := decodeSignRequest(payload)
	if err != nil {
		return wire.WriteFailure(conn)
	}

	sig, err := a.Sign(ctx, req.KeyBlob, req.Data)
	if err != nil {
		return wire.WriteFailure(conn)
	}

	// SSH wire signature blob: string(format) + string(raw signature).
	sigBlob := wire.PutString(nil, []byte("ssh-ed25519"))
	sigBlob = wire.PutString(sigBlob, sig)

	body := wire.PutString(nil, sigBlob)

	return wire.WriteMessage(conn, wire.AgentSignResponse, body)
}
