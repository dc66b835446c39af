// Package approval implements the confirmation-gating collaborator the SSH
// agent's signing pipeline calls out to before using a key flagged
// RequireConfirm or RequireBiometric. Kept separate from the signing
// pipeline so a platform-specific biometric backend can be substituted
// without touching it.
package approval

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Decision is the outcome of an approval request.
type Decision int

const (
	Denied Decision = iota
	Approved
)

// Approver is asked to approve a pending sign request for a human- or
// biometric-gated key. reason is a short, user-facing description of what
// is being signed and for which key.
type Approver interface {
	Request(ctx context.Context, reason string) (Decision, error)
}

// TTY prompts over the controlling terminal, the same one
// golang.org/x/term reads the master password from. Any answer other than
// "y"/"yes" (case-insensitive) is treated as denial.
type TTY struct {
	In  *os.File
	Out *os.File
}

// NewTTY returns a [TTY] approver reading/writing stdin/stderr.
func NewTTY() *TTY {
	return &TTY{In: os.Stdin, Out: os.Stderr}
}

func (t *TTY) Request(_ context.Context, reason string) (Decision, error) {
	if !term.IsTerminal(int(t.In.Fd())) {
		return Denied, fmt.Errorf("approval: no controlling terminal attached")
	}

	fmt.Fprintf(t.Out, "%s [y/N]: ", reason)

	reader := bufio.NewReader(t.In)

	line, err := reader.ReadString('\n')
	if err != nil {
		return Denied, fmt.Errorf("approval: failed to read response: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	if answer == "y" || answer == "yes" {
		return Approved, nil
	}

	return Denied, nil
}

// AutoDeny denies every request unconditionally. It is the default
// approver when no controlling terminal is attached - e.g. a detached
// daemon - so confirmation-required keys fail closed instead of hanging.
type AutoDeny struct{}

func (AutoDeny) Request(context.Context, string) (Decision, error) {
	return Denied, nil
}
