// Package audit implements the append-only audit log sink: a bounded
// channel drained by a single consumer goroutine, so a slow or unavailable
// database never blocks the operation being audited. A full channel drops
// the entry and increments a counter rather than blocking the caller.
package audit

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ladzaretti/vaultagent/vault/sqlite/vaultcontainer"
)

// defaultBufferSize bounds the number of pending entries before new ones are
// dropped.
const defaultBufferSize = 256

// Entry is the application-facing shape of an audit record; [Sink] assigns
// Seq and CreatedAt is assigned by the database default.
type Entry struct {
	ActorIdentityID   string
	ActorCredentialID string
	Action            string
	ResourceKind      string
	ResourceID        string
	OutcomeSuccess    bool
	OutcomeMessage    string
	Metadata          string
}

// Sink is a single-consumer audit log writer. Zero value is not usable;
// construct with [NewSink].
type Sink struct {
	store  *vaultcontainer.VaultContainer
	ch     chan Entry
	dropped atomic.Uint64
	seq    atomic.Int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewSink creates a [Sink] backed by store and starts its consumer
// goroutine. Call [Sink.Close] to stop it and drain remaining entries.
func NewSink(store *vaultcontainer.VaultContainer) *Sink {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Sink{
		store:  store,
		ch:     make(chan Entry, defaultBufferSize),
		cancel: cancel,
	}

	s.wg.Add(1)

	go s.run(ctx)

	return s
}

// Record enqueues an audit entry. Non-blocking: if the buffer is full, the
// entry is dropped and the drop counter is persisted in the background
// instead.
func (s *Sink) Record(e Entry) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := s.store.IncrementAuditDropCounter(ctx); err != nil {
				log.Printf("audit: failed to record dropped entry: %v", err)
			}
		}()
	}
}

// Dropped returns the number of entries dropped since process start.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Sink) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case e := <-s.ch:
			s.write(e)
		case <-ctx.Done():
			// drain whatever is already buffered before exiting.
			for {
				select {
				case e := <-s.ch:
					s.write(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	row := vaultcontainer.AuditEntry{
		Seq:            s.seq.Add(1),
		Action:         e.Action,
		ResourceKind:   e.ResourceKind,
		ResourceID:     e.ResourceID,
		OutcomeSuccess: e.OutcomeSuccess,
		OutcomeMessage: e.OutcomeMessage,
		Metadata:       e.Metadata,
	}

	if e.ActorIdentityID != "" {
		row.ActorIdentityID = &e.ActorIdentityID
	}

	if e.ActorCredentialID != "" {
		row.ActorCredentialID = &e.ActorCredentialID
	}

	if err := s.store.InsertAuditLog(ctx, row); err != nil {
		log.Printf("audit: failed to write entry: %v", err)
	}
}

// Close stops the consumer goroutine after draining pending entries.
func (s *Sink) Close() {
	s.cancel()
	s.wg.Wait()
}

// Recent returns the most recent limit audit entries, newest first.
func (s *Sink) Recent(ctx context.Context, limit int) ([]vaultcontainer.AuditRow, error) {
	return s.store.RecentAuditLogs(ctx, limit)
}
