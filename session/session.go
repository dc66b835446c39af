// Package session implements transient session handles that prove an
// active unlock: permission bitmask, expiry, and an in-memory store keyed
// by session id.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/ladzaretti/vaultagent/internal/syncmap"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

// Permission is a single bit in a session's permission set.
type Permission uint8

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermReveal
	PermSign
	PermAdmin

	PermAll = PermRead | PermWrite | PermReveal | PermSign | PermAdmin
)

// Has reports whether p includes every bit set in want.
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// Session is a transient handle proving an active unlock.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	Permissions  Permission
}

// Expired reports whether the session has outlived its ExpiresAt.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store holds active sessions in memory, keyed by id.
type Store struct {
	sessions *syncmap.Map[string, *Session]
	ttl      time.Duration
}

// NewStore returns a [Store] that issues sessions with the given
// time-to-live.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: syncmap.New[string, *Session](),
		ttl:      ttl,
	}
}

// Issue creates and stores a new session with the given permissions.
func (s *Store) Issue(perms Permission) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.ttl),
		Permissions:  perms,
	}

	s.sessions.Store(id, sess)

	return sess, nil
}

// Get returns the session for id, failing with [vaulterrors.ErrSessionExpired]
// if it has expired (the expired session is evicted as a side effect) or a
// generic not-found error if no session exists.
func (s *Store) Get(id string) (*Session, error) {
	sess, ok := s.sessions.Load(id)
	if !ok {
		return nil, vaulterrors.NewStoreError(vaulterrors.KindNotFound, "session", id, nil)
	}

	if sess.Expired(time.Now()) {
		s.sessions.Delete(id)
		return nil, vaulterrors.ErrSessionExpired
	}

	return sess, nil
}

// Touch refreshes a session's last-activity timestamp.
func (s *Store) Touch(id string) error {
	sess, err := s.Get(id)
	if err != nil {
		return err
	}

	sess.LastActivity = time.Now()

	return nil
}

// Revoke removes a session immediately, regardless of its expiry.
func (s *Store) Revoke(id string) {
	s.sessions.Delete(id)
}

// RevokeAll removes every active session, used on lock.
func (s *Store) RevokeAll() {
	s.sessions.DeleteFunc(func(string, *Session) bool { return true })
}

// Authorize returns [vaulterrors.ErrPermissionDenied] if the session's
// permissions do not cover want.
func (s *Session) Authorize(want Permission) error {
	if !s.Permissions.Has(want) {
		return vaulterrors.ErrPermissionDenied
	}

	return nil
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
