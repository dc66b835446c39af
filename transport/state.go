package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// State file names written into a state directory alongside the socket.
const (
	socketFileName     = "ssh-agent.sock"
	pidFileName        = "ssh-agent.pid"
	targetHostFileName = "agent-target-host"
)

// StateDir holds the paths of one agent instance's on-disk state: its
// socket, PID file, and configured target host marker. All three live in
// the same directory so a single rm -rf cleans up a stopped agent.
type StateDir struct {
	Dir string
}

// NewStateDir returns a [StateDir] rooted at dir, creating dir (and its
// parents) with owner-only permissions if it does not already exist.
func NewStateDir(dir string) (*StateDir, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("transport: create state dir: %w", err)
	}

	return &StateDir{Dir: dir}, nil
}

// SocketPath is the Unix domain socket path within the state directory.
func (s *StateDir) SocketPath() string {
	return filepath.Join(s.Dir, socketFileName)
}

func (s *StateDir) pidPath() string {
	return filepath.Join(s.Dir, pidFileName)
}

func (s *StateDir) targetHostPath() string {
	return filepath.Join(s.Dir, targetHostFileName)
}

// WritePID atomically records the running process's PID.
func (s *StateDir) WritePID(pid int) error {
	return writeFileAtomic(s.pidPath(), []byte(strconv.Itoa(pid)), 0o600)
}

// ReadPID returns the PID recorded by a previous [StateDir.WritePID] call,
// or 0 if no PID file exists.
func (s *StateDir) ReadPID() (int, error) {
	raw, err := os.ReadFile(s.pidPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("transport: malformed pid file: %w", err)
	}

	return pid, nil
}

// WriteTargetHost atomically records the host the agent is currently
// scoped to, so a CLI invoked later can discover it without re-reading
// configuration.
func (s *StateDir) WriteTargetHost(host string) error {
	return writeFileAtomic(s.targetHostPath(), []byte(host), 0o600)
}

// ReadTargetHost returns the host recorded by [StateDir.WriteTargetHost],
// or "" if unset.
func (s *StateDir) ReadTargetHost() (string, error) {
	raw, err := os.ReadFile(s.targetHostPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", err
	}

	return strings.TrimSpace(string(raw)), nil
}

// Cleanup removes every state file this instance owns. The socket itself
// is removed by the listener's close path, not here.
func (s *StateDir) Cleanup() {
	_ = os.Remove(s.pidPath())
	_ = os.Remove(s.targetHostPath())
}

// writeFileAtomic writes data to a temp file in the same directory as path
// and renames it into place, so a concurrent reader never observes a
// partially-written file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("transport: create temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("transport: write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("transport: close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("transport: chmod temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("transport: rename temp file: %w", err)
	}

	return nil
}
