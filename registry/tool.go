// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package registry holds validated tools and the machinery around them:
// content-addressed source storage and a validation decision cache. A tool
// enters the registry only after passing validation; execution never
// re-validates.
package registry

import "context"

// ToolKind distinguishes the two tool variants.
type ToolKind string

const (
	KindQuery  ToolKind = "query"
	KindScript ToolKind = "script"
)

// Tool is an executable unit registered with the gate. Name is unique
// within a registry.
type Tool interface {
	Name() string
	Kind() ToolKind
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// QueryRunner executes an already-validated read-only query.
type QueryRunner interface {
	RunQuery(ctx context.Context, query string, args map[string]interface{}) (interface{}, error)
}

// ScriptRunner executes an already-validated script's entry point.
type ScriptRunner interface {
	RunScript(ctx context.Context, name string, src []byte, args map[string]interface{}) (interface{}, error)
}

// QueryTool wraps a validated read-only SQL query.
type QueryTool struct {
	name   string
	query  string
	hash   string
	runner QueryRunner
}

func (t *QueryTool) Name() string   { return t.name }
func (t *QueryTool) Kind() ToolKind { return KindQuery }

// Hash is the content hash of the query text.
func (t *QueryTool) Hash() string { return t.hash }

// Query returns the validated query text.
func (t *QueryTool) Query() string { return t.query }

func (t *QueryTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return t.runner.RunQuery(ctx, t.query, args)
}

// ScriptTool wraps a validated script. Source lives in the code store; the
// tool carries only the hash and resolves source at execution time, so the
// store stays the single copy.
type ScriptTool struct {
	name   string
	hash   string
	code   CodeStore
	runner ScriptRunner
}

func (t *ScriptTool) Name() string   { return t.name }
func (t *ScriptTool) Kind() ToolKind { return KindScript }

// Hash is the content hash of the script source.
func (t *ScriptTool) Hash() string { return t.hash }

func (t *ScriptTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	src, ok := t.code.Get(t.hash)
	if !ok {
		return nil, ErrSourceMissing
	}
	return t.runner.RunScript(ctx, t.name, src, args)
}
