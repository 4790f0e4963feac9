// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"axonflow/toolgate/gate/policy"
	"axonflow/toolgate/gate/scriptguard"
	"axonflow/toolgate/gate/sqlguard"
)

var (
	// ErrToolNotFound is returned when a tool name is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolExists is returned on a duplicate registration.
	ErrToolExists = errors.New("tool already registered")

	// ErrToolRejected is returned when validation (fresh or cached)
	// rejects the submitted content. Nothing is registered on rejection.
	ErrToolRejected = errors.New("tool rejected by validation")

	// ErrSourceMissing means a script tool's source vanished from the
	// code store. Stores never evict, so this indicates misconfiguration.
	ErrSourceMissing = errors.New("tool source missing from code store")
)

// queryFingerprint stands in for a policy fingerprint on query decisions:
// query validation has no configurable policy, so the decision surface only
// changes with the validator itself.
const queryFingerprint = "sqlguard.v1"

// Registry is the collection of validated tools. All methods are safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	queries *sqlguard.Validator
	scripts *scriptguard.Validator
	code    CodeStore
	cache   DecisionCache

	queryRunner  QueryRunner
	scriptRunner ScriptRunner
}

// Config wires a registry's collaborators. Nil Code and Cache default to
// in-memory implementations; nil runners leave the corresponding Execute
// returning an error, which suits validate-only deployments.
type Config struct {
	Code         CodeStore
	Cache        DecisionCache
	QueryRunner  QueryRunner
	ScriptRunner ScriptRunner
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.Code == nil {
		cfg.Code = NewMemoryCodeStore()
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryDecisionCache()
	}
	return &Registry{
		tools:        make(map[string]Tool),
		queries:      sqlguard.NewValidator(),
		scripts:      scriptguard.NewValidator(),
		code:         cfg.Code,
		cache:        cfg.Cache,
		queryRunner:  cfg.QueryRunner,
		scriptRunner: cfg.ScriptRunner,
	}
}

// RegisterQuery validates a read-only query and registers it under name.
// On rejection nothing is recorded beyond the cached verdict.
func (r *Registry) RegisterQuery(ctx context.Context, name, query string) (*QueryTool, error) {
	if err := r.reserveName(name); err != nil {
		return nil, err
	}

	hash := HashSource([]byte(query))
	key := DecisionKey(hash, queryFingerprint)

	if d := r.cachedDecision(ctx, key); d != nil {
		if !d.Allowed {
			return nil, fmt.Errorf("%w: %s", ErrToolRejected, d.Reason)
		}
	} else {
		if _, err := r.queries.Validate(query); err != nil {
			r.storeDecision(ctx, key, Decision{Allowed: false, Reason: err.Error()})
			return nil, fmt.Errorf("%w: %v", ErrToolRejected, err)
		}
		r.storeDecision(ctx, key, Decision{Allowed: true})
	}

	tool := &QueryTool{name: name, query: query, hash: hash, runner: queryRunnerOrErr(r.queryRunner)}
	return tool, r.add(tool)
}

// RegisterScript validates script source against the snapshot and registers
// it under name. The source is stored content-addressed; duplicate source
// across tools is stored once.
func (r *Registry) RegisterScript(ctx context.Context, name string, src []byte, snap policy.Snapshot) (*ScriptTool, error) {
	if err := r.reserveName(name); err != nil {
		return nil, err
	}

	hash := HashSource(src)
	key := DecisionKey(hash, snap.Fingerprint())

	if d := r.cachedDecision(ctx, key); d != nil {
		if !d.Allowed {
			return nil, fmt.Errorf("%w: %s", ErrToolRejected, d.Reason)
		}
	} else {
		if _, err := r.scripts.Validate(name, src, snap); err != nil {
			r.storeDecision(ctx, key, Decision{Allowed: false, Reason: err.Error()})
			return nil, fmt.Errorf("%w: %v", ErrToolRejected, err)
		}
		r.storeDecision(ctx, key, Decision{Allowed: true})
	}

	tool := &ScriptTool{name: name, hash: hash, code: r.code, runner: scriptRunnerOrErr(r.scriptRunner)}

	// Source is stored only once the name is secured, so a losing
	// registration leaves no record beyond the cached verdict.
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrToolExists, name)
	}
	r.code.Put(hash, src)
	r.tools[name] = tool
	return tool, nil
}

// Get returns a registered tool.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool, nil
}

// List returns registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Remove unregisters a tool. Source stays in the code store; another tool
// may share it.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	delete(r.tools, name)
	return nil
}

// Execute looks up and runs a tool.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return tool.Execute(ctx, args)
}

func (r *Registry) reserveName(name string) error {
	if name == "" {
		return errors.New("tool name must not be empty")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("%w: %q", ErrToolExists, name)
	}
	return nil
}

func (r *Registry) add(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[tool.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrToolExists, tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

// cachedDecision swallows cache errors: a broken cache degrades to
// re-validation, never to skipped validation.
func (r *Registry) cachedDecision(ctx context.Context, key string) *Decision {
	d, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	return d
}

func (r *Registry) storeDecision(ctx context.Context, key string, d Decision) {
	// best effort
	_ = r.cache.Put(ctx, key, d)
}

type noQueryRunner struct{}

func (noQueryRunner) RunQuery(context.Context, string, map[string]interface{}) (interface{}, error) {
	return nil, errors.New("no query runner configured")
}

type noScriptRunner struct{}

func (noScriptRunner) RunScript(context.Context, string, []byte, map[string]interface{}) (interface{}, error) {
	return nil, errors.New("no script runner configured")
}

func queryRunnerOrErr(r QueryRunner) QueryRunner {
	if r == nil {
		return noQueryRunner{}
	}
	return r
}

func scriptRunnerOrErr(r ScriptRunner) ScriptRunner {
	if r == nil {
		return noScriptRunner{}
	}
	return r
}
