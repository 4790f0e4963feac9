// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditMemoryMode(t *testing.T) {
	trail := NewAuditTrail(AuditTrailConfig{})
	ctx := context.Background()

	require.NoError(t, trail.Record(ctx, VerdictEntry{
		RequestID:   "req-1",
		ContentType: "query",
		ContentHash: "abc",
		Outcome:     OutcomeRejected,
		ReasonCode:  "not_read_only",
	}))

	entries := trail.Recent(0)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEmpty(t, entries[0].AuditHash)
	assert.False(t, entries[0].CreatedAt.IsZero())

	stats := trail.Stats()
	assert.Equal(t, uint64(1), stats["verdicts_recorded"])
	assert.Equal(t, true, stats["memory_mode"])
}

func TestAuditHashIsStable(t *testing.T) {
	entry := VerdictEntry{
		RequestID:         "req-1",
		Persona:           "analyst",
		ContentHash:       "abc",
		PolicyFingerprint: "fp",
		Outcome:           OutcomeAccepted,
		ProcessingTimeMs:  3,
	}
	assert.Equal(t, computeAuditHash(entry), computeAuditHash(entry))

	tampered := entry
	tampered.Outcome = OutcomeRejected
	assert.NotEqual(t, computeAuditHash(entry), computeAuditHash(tampered))
}

func TestAuditRecentLimit(t *testing.T) {
	trail := NewAuditTrail(AuditTrailConfig{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, trail.Record(ctx, VerdictEntry{RequestID: "r", ContentType: "query"}))
	}
	assert.Len(t, trail.Recent(2), 2)
	assert.Len(t, trail.Recent(0), 5)
}

func TestAuditShutdownWithoutQueue(t *testing.T) {
	trail := NewAuditTrail(AuditTrailConfig{})
	assert.NoError(t, trail.Shutdown(context.Background()))
}
