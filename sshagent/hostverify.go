package sshagent

import (
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// NewHostKeyCallback parses the OpenSSH known_hosts file(s) at files and
// returns a callback that reports whether a given host/public-key pair is
// already trusted. The agent itself never performs a handshake; a caller
// that holds a host's key checks it through [Agent.VerifyHost], or records
// a trust decision made elsewhere via [Agent.MarkHostVerified], before the
// first sign request for that host. Neither the transport package nor the
// CLI makes such a call.
func NewHostKeyCallback(files ...string) (ssh.HostKeyCallback, error) {
	return knownhosts.New(files...)
}
