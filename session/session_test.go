package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ladzaretti/vaultagent/session"
	"github.com/ladzaretti/vaultagent/vaulterrors"
)

func TestPermission_Has(t *testing.T) {
	tests := []struct {
		name string
		have session.Permission
		want session.Permission
		ok   bool
	}{
		{"exact match", session.PermRead, session.PermRead, true},
		{"superset", session.PermAll, session.PermSign, true},
		{"missing bit", session.PermRead, session.PermWrite, false},
		{"partial of combined want", session.PermRead | session.PermWrite, session.PermRead | session.PermReveal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.have.Has(tt.want); got != tt.ok {
				t.Errorf("Has() = %v, want %v", got, tt.ok)
			}
		})
	}
}

func TestStore_IssueGetTouch(t *testing.T) {
	s := session.NewStore(time.Hour)

	sess, err := s.Issue(session.PermRead | session.PermSign)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.ID != sess.ID {
		t.Errorf("Get() returned id %q, want %q", got.ID, sess.ID)
	}

	if err := got.Authorize(session.PermRead); err != nil {
		t.Errorf("Authorize(PermRead) = %v, want nil", err)
	}

	if err := got.Authorize(session.PermWrite); !errors.Is(err, vaulterrors.ErrPermissionDenied) {
		t.Errorf("Authorize(PermWrite) = %v, want %v", err, vaulterrors.ErrPermissionDenied)
	}

	before := got.LastActivity
	time.Sleep(time.Millisecond)

	if err := s.Touch(sess.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	touched, err := s.Get(sess.ID)
	if err != nil {
		t.Fatalf("Get after Touch: %v", err)
	}

	if !touched.LastActivity.After(before) {
		t.Error("Touch did not advance LastActivity")
	}
}

func TestStore_Get_Expired(t *testing.T) {
	s := session.NewStore(-time.Second)

	sess, err := s.Issue(session.PermAll)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = s.Get(sess.ID)
	if !errors.Is(err, vaulterrors.ErrSessionExpired) {
		t.Errorf("Get() = %v, want %v", err, vaulterrors.ErrSessionExpired)
	}

	// the expired session is evicted as a side effect of Get.
	if _, err := s.Get(sess.ID); errors.Is(err, vaulterrors.ErrSessionExpired) {
		t.Error("expected a not-found error, not ErrSessionExpired, on the second Get")
	}
}

func TestStore_RevokeAndRevokeAll(t *testing.T) {
	s := session.NewStore(time.Hour)

	a, err := s.Issue(session.PermRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	b, err := s.Issue(session.PermRead)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	s.Revoke(a.ID)

	if _, err := s.Get(a.ID); err == nil {
		t.Error("expected Get to fail for a revoked session")
	}

	if _, err := s.Get(b.ID); err != nil {
		t.Errorf("Get(b) = %v, want nil", err)
	}

	s.RevokeAll()

	if _, err := s.Get(b.ID); err == nil {
		t.Error("expected Get to fail after RevokeAll")
	}
}
