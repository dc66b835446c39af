package transport_test

import (
	"path/filepath"
	"testing"

	"github.com/ladzaretti/vaultagent/transport"
)

func TestStateDir_PID(t *testing.T) {
	s, err := transport.NewStateDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateDir: %v", err)
	}

	if pid, err := s.ReadPID(); err != nil || pid != 0 {
		t.Fatalf("ReadPID() = (%d, %v), want (0, nil) before any write", pid, err)
	}

	if err := s.WritePID(4242); err != nil {
		t.Fatalf("WritePID: %v", err)
	}

	pid, err := s.ReadPID()
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}

	if got, want := pid, 4242; got != want {
		t.Errorf("ReadPID() = %d, want %d", got, want)
	}
}

func TestStateDir_TargetHost(t *testing.T) {
	s, err := transport.NewStateDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateDir: %v", err)
	}

	if host, err := s.ReadTargetHost(); err != nil || host != "" {
		t.Fatalf("ReadTargetHost() = (%q, %v), want (\"\", nil) before any write", host, err)
	}

	if err := s.WriteTargetHost("prod.example.com"); err != nil {
		t.Fatalf("WriteTargetHost: %v", err)
	}

	host, err := s.ReadTargetHost()
	if err != nil {
		t.Fatalf("ReadTargetHost: %v", err)
	}

	if got, want := host, "prod.example.com"; got != want {
		t.Errorf("ReadTargetHost() = %q, want %q", got, want)
	}
}

func TestStateDir_SocketPath(t *testing.T) {
	dir := t.TempDir()

	s, err := transport.NewStateDir(dir)
	if err != nil {
		t.Fatalf("NewStateDir: %v", err)
	}

	if got, want := s.SocketPath(), filepath.Join(dir, "ssh-agent.sock"); got != want {
		t.Errorf("SocketPath() = %q, want %q", got, want)
	}
}

func TestStateDir_Cleanup(t *testing.T) {
	s, err := transport.NewStateDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateDir: %v", err)
	}

	if err := s.WritePID(1); err != nil {
		t.Fatalf("WritePID: %v", err)
	}

	if err := s.WriteTargetHost("host"); err != nil {
		t.Fatalf("WriteTargetHost: %v", err)
	}

	s.Cleanup()

	if pid, err := s.ReadPID(); err != nil || pid != 0 {
		t.Errorf("ReadPID() after Cleanup = (%d, %v), want (0, nil)", pid, err)
	}

	if host, err := s.ReadTargetHost(); err != nil || host != "" {
		t.Errorf("ReadTargetHost() after Cleanup = (%q, %v), want (\"\", nil)", host, err)
	}
}
