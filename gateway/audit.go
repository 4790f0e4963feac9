// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// VerdictOutcome is the result of a gate decision.
type VerdictOutcome string

const (
	OutcomeAccepted VerdictOutcome = "accepted"
	OutcomeRejected VerdictOutcome = "rejected"
	OutcomeError    VerdictOutcome = "error"
)

// VerdictEntry is one audited gate decision. Content never enters the
// trail; only its hash does.
type VerdictEntry struct {
	ID          string `json:"id"`
	RequestID   string `json:"request_id"`
	Persona     string `json:"persona,omitempty"`
	ToolName    string `json:"tool_name,omitempty"`
	ContentType string `json:"content_type"` // query or script
	ContentHash string `json:"content_hash"`

	Outcome    VerdictOutcome `json:"outcome"`
	ReasonCode string         `json:"reason_code,omitempty"`
	Reason     string         `json:"reason,omitempty"`

	// PolicyFingerprint ties the verdict to the exact policy it was
	// decided under.
	PolicyFingerprint string `json:"policy_fingerprint,omitempty"`

	// Capabilities lists what a script asked for, pattern form.
	Capabilities []string `json:"capabilities,omitempty"`

	ProcessingTimeMs int64     `json:"processing_time_ms"`
	AuditHash        string    `json:"audit_hash"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditTrail records gate verdicts. With a database it writes through an
// async worker pool; without one it keeps entries in memory, which is the
// test and evaluation mode.
type AuditTrail struct {
	db        *sql.DB
	useMemory bool

	mu      sync.RWMutex
	entries []VerdictEntry

	recorded     uint64
	recordErrors uint64

	queue  chan VerdictEntry
	wg     sync.WaitGroup
	closed atomic.Bool
}

// AuditTrailConfig holds configuration for the trail.
type AuditTrailConfig struct {
	// DB is the PostgreSQL connection. Nil means memory mode.
	DB *sql.DB

	// QueueSize is the async buffer depth. Negative means synchronous;
	// zero means the default of 1000.
	QueueSize int

	// Workers is the async writer count. Default: 2.
	Workers int
}

// NewAuditTrail creates a trail.
func NewAuditTrail(cfg AuditTrailConfig) *AuditTrail {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers == 0 && cfg.QueueSize > 0 {
		cfg.Workers = 2
	}

	trail := &AuditTrail{
		db:        cfg.DB,
		useMemory: cfg.DB == nil,
	}

	if cfg.QueueSize > 0 && cfg.DB != nil {
		trail.queue = make(chan VerdictEntry, cfg.QueueSize)
		for i := 0; i < cfg.Workers; i++ {
			trail.wg.Add(1)
			go trail.worker(i)
		}
	}
	if trail.useMemory {
		log.Println("[Audit] Running in memory mode (no database)")
	}
	return trail
}

// Record adds a verdict to the trail. Missing identifiers and the tamper
// hash are filled in here so every entry is complete regardless of caller.
func (t *AuditTrail) Record(ctx context.Context, entry VerdictEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.AuditHash == "" {
		entry.AuditHash = computeAuditHash(entry)
	}

	atomic.AddUint64(&t.recorded, 1)

	if t.useMemory {
		t.mu.Lock()
		t.entries = append(t.entries, entry)
		t.mu.Unlock()
		return nil
	}

	if t.queue != nil && !t.closed.Load() {
		select {
		case t.queue <- entry:
			return nil
		default:
			// Queue full, fall through to sync
			log.Println("[Audit] Async queue full, writing synchronously")
		}
	}
	return t.writeDB(ctx, entry)
}

// Recent returns the newest entries, memory mode only. The database path
// is queried directly by reporting tools.
func (t *AuditTrail) Recent(limit int) []VerdictEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if limit <= 0 || limit > len(t.entries) {
		limit = len(t.entries)
	}
	out := make([]VerdictEntry, limit)
	copy(out, t.entries[len(t.entries)-limit:])
	return out
}

// Stats returns trail counters.
func (t *AuditTrail) Stats() map[string]interface{} {
	pending := 0
	if t.queue != nil {
		pending = len(t.queue)
	}
	t.mu.RLock()
	memory := len(t.entries)
	t.mu.RUnlock()
	return map[string]interface{}{
		"verdicts_recorded": atomic.LoadUint64(&t.recorded),
		"record_errors":     atomic.LoadUint64(&t.recordErrors),
		"async_pending":     pending,
		"memory_mode":       t.useMemory,
		"memory_entries":    memory,
	}
}

// Shutdown drains the async queue.
func (t *AuditTrail) Shutdown(ctx context.Context) error {
	if t.queue == nil {
		return nil
	}
	t.closed.Store(true)
	close(t.queue)

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *AuditTrail) writeDB(ctx context.Context, entry VerdictEntry) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO gate_verdicts (
			id, request_id, persona, tool_name,
			content_type, content_hash,
			outcome, reason_code, reason,
			policy_fingerprint, capabilities,
			processing_time_ms, audit_hash, created_at
		) VALUES (
			$1, $2, $3, NULLIF($4, ''),
			$5, $6,
			$7, NULLIF($8, ''), NULLIF($9, ''),
			NULLIF($10, ''), $11,
			$12, $13, $14
		)`,
		entry.ID, entry.RequestID, entry.Persona, entry.ToolName,
		entry.ContentType, entry.ContentHash,
		string(entry.Outcome), entry.ReasonCode, entry.Reason,
		entry.PolicyFingerprint, pq.Array(entry.Capabilities),
		entry.ProcessingTimeMs, entry.AuditHash, entry.CreatedAt,
	)
	if err != nil {
		atomic.AddUint64(&t.recordErrors, 1)
		return fmt.Errorf("failed to record verdict: %w", err)
	}
	return nil
}

func (t *AuditTrail) worker(id int) {
	defer t.wg.Done()
	for entry := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := t.writeDB(ctx, entry); err != nil {
			log.Printf("[Audit] Worker %d: failed to record: %v", id, err)
		}
		cancel()
	}
}

// computeAuditHash generates a SHA-256 hash for tamper detection.
// Length-prefixed encoding prevents collision attacks.
func computeAuditHash(entry VerdictEntry) string {
	hashInput := fmt.Sprintf(
		"%d:%s|%d:%s|%d:%s|%d:%s|%s|%s|%d",
		len(entry.RequestID), entry.RequestID,
		len(entry.Persona), entry.Persona,
		len(entry.ContentHash), entry.ContentHash,
		len(entry.PolicyFingerprint), entry.PolicyFingerprint,
		string(entry.Outcome),
		entry.ReasonCode,
		entry.ProcessingTimeMs,
	)
	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}
