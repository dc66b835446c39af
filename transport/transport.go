// Package transport implements the agent's local-endpoint listener: a Unix
// domain socket with owner-only permissions, a UID-checking accept loop,
// and atomically-written state files beside the socket recording the PID
// and configured target host.
package transport

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketPerm is the file permission mode for the Unix domain socket:
// owner read/write only.
const socketPerm = 0o600

// getCred returns the credentials of the remote end of a Unix socket
// connection via SO_PEERCRED.
func getCred(conn net.Conn) (*unix.Ucred, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("transport: connection is not a *net.UnixConn: got %T", conn)
	}

	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return nil, err
	}

	var (
		ucred    *unix.Ucred
		ucredErr error
	)

	err = rawConn.Control(func(fd uintptr) {
		ucred, ucredErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, err
	}

	if ucredErr != nil {
		return nil, ucredErr
	}

	return ucred, nil
}

// uidCheckingListener wraps a [net.Listener] and only accepts connections
// from clients whose SO_PEERCRED UID matches allowedUID, closing and
// skipping any other connection.
type uidCheckingListener struct {
	net.Listener
	allowedUID int
}

func (l *uidCheckingListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		ucred, err := getCred(conn)
		if err != nil {
			log.Printf("[vault-agent] uid check failed: %v", err)
			_ = conn.Close() //nolint:wsl

			continue
		}

		if int(ucred.Uid) != l.allowedUID {
			log.Printf("[vault-agent] connection from disallowed uid: %d", ucred.Uid)
			_ = conn.Close() //nolint:wsl

			continue
		}

		return conn, nil
	}
}

// Listen creates a Unix domain socket at path, removing a stale socket
// left behind by a previous, no-longer-running process, and restricts it
// to owner-only permissions and the current UID.
func Listen(path string) (net.Listener, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, fmt.Errorf("transport: failed to remove stale socket: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("transport: failed to create socket directory: %w", err)
	}

	socket, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: unix socket listen: %w", err)
	}

	if err := os.Chmod(path, socketPerm); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("transport: unix socket chmod: %w", err)
	}

	return &uidCheckingListener{Listener: socket, allowedUID: os.Getuid()}, nil
}

// removeStaleSocket removes path if it exists and nothing is listening on
// it anymore. A socket file whose owning process is gone is "stale" per
// spec.md's state-file recovery rule.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	conn, err := net.Dial("unix", path)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("transport: socket %s already in use by a live listener", path)
	}

	return os.Remove(path)
}

// VerifySocketOwnership checks that the socket at path is owned by uid,
// not a symlink, carries [socketPerm], and is in fact a socket - the
// client-side counterpart of the server's UID check.
func VerifySocketOwnership(path string, uid int) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("transport: could not stat socket: %w", err)
	}

	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("transport: refusing to follow symlink: %s", path)
	}

	stat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("transport: unexpected file stat type")
	}

	if int(stat.Uid) != uid {
		return fmt.Errorf("transport: unexpected socket owner uid: got %d, want %d", stat.Uid, uid)
	}

	if fi.Mode().Perm() != socketPerm {
		return fmt.Errorf("transport: socket file has insecure permissions: %v", fi.Mode().Perm())
	}

	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("transport: file is not a socket: %s", path)
	}

	return nil
}
