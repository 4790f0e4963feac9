// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"axonflow/toolgate/gate/sqlguard"
)

// Executor runs read-only queries. It re-validates defensively before
// touching the database, so even a tool smuggled into the registry by a
// poisoned cache cannot execute a write.
type Executor struct {
	db        *sql.DB
	validator *sqlguard.Validator
}

// NewExecutor creates an executor over an open database handle.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db, validator: sqlguard.NewValidator()}
}

// RunQuery executes a validated query and returns its rows as a slice of
// column-keyed maps. Positional parameters bind from args in key-sorted
// order. This is the registry's query runner hook.
func (e *Executor) RunQuery(ctx context.Context, query string, args map[string]interface{}) (interface{}, error) {
	if _, err := e.validator.Validate(query); err != nil {
		return nil, fmt.Errorf("query refused at execution: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, query, orderedArgs(args)...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			// Drivers hand back []byte for text columns; strings are
			// what script consumers and JSON encoding expect.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return out, nil
}

// orderedArgs flattens an argument map into positional parameters by sorted
// key, matching $1..$n in the registered query text.
func orderedArgs(args map[string]interface{}) []interface{} {
	if len(args) == 0 {
		return nil
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, args[k])
	}
	return out
}
