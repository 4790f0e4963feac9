// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package store persists capability policy rules and resolves the active
// rule set for a persona into an evaluable snapshot.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"axonflow/toolgate/gate/policy"
)

// ErrRuleNotFound is returned when a rule id does not exist or is deleted.
var ErrRuleNotFound = errors.New("capability rule not found")

// ErrInvalidRule is returned when a rule fails field validation.
var ErrInvalidRule = errors.New("invalid capability rule")

// StoredRule is a persisted capability rule. Persona scopes the rule: an
// empty persona means the rule applies to every caller.
type StoredRule struct {
	ID          string          `json:"id"`
	Persona     string          `json:"persona,omitempty"`
	Type        policy.RuleType `json:"type"`
	Category    policy.Category `json:"category"`
	Pattern     string          `json:"pattern"`
	Active      bool            `json:"active"`
	Description string          `json:"description,omitempty"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Rule converts the stored form to the engine form.
func (r *StoredRule) Rule() policy.Rule {
	return policy.Rule{
		Type:        r.Type,
		Category:    r.Category,
		Pattern:     r.Pattern,
		Active:      r.Active,
		Description: r.Description,
	}
}

// RuleRepository provides CRUD over capability rules.
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository creates a repository over an open database handle.
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func validateRule(r *StoredRule) error {
	if r.Type != policy.RuleAllow && r.Type != policy.RuleDeny {
		return fmt.Errorf("%w: type %q", ErrInvalidRule, r.Type)
	}
	switch r.Category {
	case policy.CategoryModule, policy.CategoryFunction, policy.CategoryAttribute:
	default:
		return fmt.Errorf("%w: category %q", ErrInvalidRule, r.Category)
	}
	if r.Pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidRule)
	}
	return nil
}

// Create inserts a rule, assigning its id and timestamps.
func (repo *RuleRepository) Create(ctx context.Context, rule *StoredRule, createdBy string) error {
	if err := validateRule(rule); err != nil {
		return err
	}

	rule.ID = uuid.New().String()
	rule.CreatedBy = createdBy
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO capability_rules
			(id, persona, rule_type, category, pattern, active, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rule.ID, rule.Persona, string(rule.Type), string(rule.Category),
		rule.Pattern, rule.Active, rule.Description, rule.CreatedBy,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert capability rule: %w", err)
	}
	return nil
}

// GetByID fetches one rule.
func (repo *RuleRepository) GetByID(ctx context.Context, id string) (*StoredRule, error) {
	row := repo.db.QueryRowContext(ctx, `
		SELECT id, persona, rule_type, category, pattern, active, description, created_by, created_at, updated_at
		FROM capability_rules
		WHERE id = $1 AND deleted_at IS NULL`, id)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capability rule: %w", err)
	}
	return rule, nil
}

// List returns the rules visible to a persona: global rules plus the
// persona's own, newest first. Deleted rules are excluded; inactive rules
// are included so operators can see what is configured but dormant.
func (repo *RuleRepository) List(ctx context.Context, persona string) ([]StoredRule, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT id, persona, rule_type, category, pattern, active, description, created_by, created_at, updated_at
		FROM capability_rules
		WHERE deleted_at IS NULL AND (persona = '' OR persona = $1)
		ORDER BY created_at DESC`, persona)
	if err != nil {
		return nil, fmt.Errorf("failed to list capability rules: %w", err)
	}
	defer rows.Close()

	var rules []StoredRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capability rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capability rules: %w", err)
	}
	return rules, nil
}

// SetActive toggles a rule without rewriting it.
func (repo *RuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE capability_rules
		SET active = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`,
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to toggle capability rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to toggle capability rule: %w", err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete soft-deletes a rule. Deleted rules drop out of every snapshot but
// stay queryable for audit.
func (repo *RuleRepository) Delete(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE capability_rules
		SET deleted_at = $1
		WHERE id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete capability rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete capability rule: %w", err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ActiveSnapshot resolves the persona's effective policy into a snapshot.
// Inactive rules are passed through; the snapshot drops them itself, which
// keeps fingerprinting in one place.
func (repo *RuleRepository) ActiveSnapshot(ctx context.Context, persona string) (policy.Snapshot, error) {
	stored, err := repo.List(ctx, persona)
	if err != nil {
		return policy.Snapshot{}, err
	}
	rules := make([]policy.Rule, 0, len(stored))
	for i := range stored {
		rules = append(rules, stored[i].Rule())
	}
	return policy.NewSnapshot(rules), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*StoredRule, error) {
	var r StoredRule
	var ruleType, category string
	err := row.Scan(&r.ID, &r.Persona, &ruleType, &category, &r.Pattern,
		&r.Active, &r.Description, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Type = policy.RuleType(ruleType)
	r.Category = policy.Category(category)
	return &r, nil
}
