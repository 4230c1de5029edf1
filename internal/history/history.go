package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimeFormat is the display format for record timestamps.
const TimeFormat = "2006-01-02 15:04:05"

// State classifies the terminal outcome of a transfer call.
type State int

const (
	StateComplete State = iota
	StateIncomplete
	StateFailed
)

// Status is the outcome of one top-level transfer call. Incomplete carries
// how far the transfer got; Failed carries the error text shown to users.
type Status struct {
	State    State
	Received int64
	Total    int64
	Reason   string
}

// Complete returns the status for a fully delivered payload.
func Complete() Status {
	return Status{State: StateComplete}
}

// Incomplete returns the status for a transfer that stopped short of the
// declared size.
func Incomplete(received, total int64) Status {
	return Status{State: StateIncomplete, Received: received, Total: total}
}

// Failed returns the status for a transfer that ended with an error.
func Failed(err error) Status {
	return Status{State: StateFailed, Reason: err.Error()}
}

func (s Status) String() string {
	switch s.State {
	case StateComplete:
		return "Complete"
	case StateIncomplete:
		return fmt.Sprintf("Incomplete (%d/%d bytes)", s.Received, s.Total)
	case StateFailed:
		return fmt.Sprintf("Failed: %s", s.Reason)
	default:
		return "Unknown"
	}
}

// Record is one ledger entry. Exactly one record is appended per top-level
// transfer call, never per retry attempt.
type Record struct {
	ID        string
	Timestamp time.Time
	FileName  string
	Peer      string
	Size      int64
	Status    Status
}

// NewRecord stamps a record with a fresh ID and the current time.
func NewRecord(fileName, peer string, size int64, status Status) Record {
	return Record{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		FileName:  fileName,
		Peer:      peer,
		Size:      size,
		Status:    status,
	}
}

// Ledger is an in-memory append-only log of transfer outcomes. It holds no
// persistent state; a process restart starts an empty ledger.
type Ledger struct {
	mu      sync.RWMutex
	records []Record
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a record to the ledger.
func (l *Ledger) Append(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// Clear empties the ledger. It is the only mutation besides Append.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}

// Records returns a copy of the ledger contents in append order.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len reports the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
