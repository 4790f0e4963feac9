// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/toolgate/gate/policy"
)

func newMockRepo(t *testing.T) (*RuleRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRuleRepository(db), mock
}

func ruleColumns() []string {
	return []string{
		"id", "persona", "rule_type", "category", "pattern",
		"active", "description", "created_by", "created_at", "updated_at",
	}
}

func TestCreateRule(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO capability_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &StoredRule{
		Persona:  "analyst",
		Type:     policy.RuleDeny,
		Category: policy.CategoryAttribute,
		Pattern:  "db.raw_*",
		Active:   true,
	}
	err := repo.Create(context.Background(), rule, "admin@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, "admin@example.com", rule.CreatedBy)
	assert.False(t, rule.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRuleValidation(t *testing.T) {
	repo, mock := newMockRepo(t)

	tests := []struct {
		name string
		rule *StoredRule
	}{
		{"bad type", &StoredRule{Type: "maybe", Category: policy.CategoryModule, Pattern: "x"}},
		{"bad category", &StoredRule{Type: policy.RuleDeny, Category: "network", Pattern: "x"}},
		{"empty pattern", &StoredRule{Type: policy.RuleDeny, Category: policy.CategoryModule}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Create(context.Background(), tt.rule, "admin")
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
	// Invalid rules never reach the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM capability_rules").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(ruleColumns()))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestListRules(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(ruleColumns()).
		AddRow("id-1", "", "deny", "module", "requests", true, "no outbound http", "admin", now, now).
		AddRow("id-2", "analyst", "allow", "function", "render", true, "", "admin", now, now)

	mock.ExpectQuery("SELECT (.+) FROM capability_rules").
		WithArgs("analyst").
		WillReturnRows(rows)

	rules, err := repo.List(context.Background(), "analyst")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, policy.RuleDeny, rules[0].Type)
	assert.Equal(t, policy.CategoryModule, rules[0].Category)
	assert.Equal(t, "analyst", rules[1].Persona)
}

func TestSetActiveNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE capability_rules").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetActive(context.Background(), "missing", false)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestDeleteRule(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE capability_rules").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "id-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveSnapshot(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(ruleColumns()).
		AddRow("id-1", "", "deny", "module", "requests", true, "", "admin", now, now).
		AddRow("id-2", "", "allow", "module", "socket", true, "", "admin", now, now).
		AddRow("id-3", "", "deny", "module", "json", false, "dormant", "admin", now, now)

	mock.ExpectQuery("SELECT (.+) FROM capability_rules").
		WithArgs("analyst").
		WillReturnRows(rows)

	snap, err := repo.ActiveSnapshot(context.Background(), "analyst")
	require.NoError(t, err)

	// Configured deny applies.
	assert.ErrorIs(t, snap.Evaluate(policy.Capability{
		Category: policy.CategoryModule, Module: "requests",
	}), policy.ErrForbiddenModule)

	// Explicit allow overrides the built-in deny.
	assert.NoError(t, snap.Evaluate(policy.Capability{
		Category: policy.CategoryModule, Module: "socket",
	}))

	// Inactive rule is dormant.
	assert.NoError(t, snap.Evaluate(policy.Capability{
		Category: policy.CategoryModule, Module: "json",
	}))

	// Built-ins still in force.
	assert.ErrorIs(t, snap.Evaluate(policy.Capability{
		Category: policy.CategoryModule, Module: "subprocess",
	}), policy.ErrForbiddenModule)
}
