// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/toolgate/gate/policy"
)

type stubQueryRunner struct {
	lastQuery string
	result    interface{}
}

func (s *stubQueryRunner) RunQuery(_ context.Context, query string, _ map[string]interface{}) (interface{}, error) {
	s.lastQuery = query
	return s.result, nil
}

type stubScriptRunner struct {
	lastName string
	lastSrc  []byte
	result   interface{}
}

func (s *stubScriptRunner) RunScript(_ context.Context, name string, src []byte, _ map[string]interface{}) (interface{}, error) {
	s.lastName = name
	s.lastSrc = src
	return s.result, nil
}

const scriptSrc = `def execute(args):
    return args["x"]
`

func TestRegisterQuery(t *testing.T) {
	runner := &stubQueryRunner{result: "rows"}
	reg := New(Config{QueryRunner: runner})
	ctx := context.Background()

	tool, err := reg.RegisterQuery(ctx, "open-orders", "SELECT * FROM orders WHERE status = 'open'")
	require.NoError(t, err)
	assert.Equal(t, KindQuery, tool.Kind())
	assert.NotEmpty(t, tool.Hash())

	out, err := reg.Execute(ctx, "open-orders", nil)
	require.NoError(t, err)
	assert.Equal(t, "rows", out)
	assert.Contains(t, runner.lastQuery, "FROM orders")

	assert.Equal(t, []string{"open-orders"}, reg.List())
}

func TestRegisterQueryRejected(t *testing.T) {
	reg := New(Config{})
	ctx := context.Background()

	_, err := reg.RegisterQuery(ctx, "bad", "DROP TABLE users")
	assert.ErrorIs(t, err, ErrToolRejected)

	// Nothing registered on rejection.
	_, err = reg.Get("bad")
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Empty(t, reg.List())
}

func TestRegisterDuplicateName(t *testing.T) {
	reg := New(Config{})
	ctx := context.Background()

	_, err := reg.RegisterQuery(ctx, "q", "SELECT 1")
	require.NoError(t, err)
	_, err = reg.RegisterQuery(ctx, "q", "SELECT 2")
	assert.ErrorIs(t, err, ErrToolExists)
}

func TestDuplicateScriptNameStoresNoSource(t *testing.T) {
	code := NewMemoryCodeStore()
	reg := New(Config{Code: code})
	ctx := context.Background()

	_, err := reg.RegisterQuery(ctx, "report", "SELECT 1")
	require.NoError(t, err)

	src := []byte(scriptSrc)
	_, err = reg.RegisterScript(ctx, "report", src, policy.NewSnapshot(nil))
	require.ErrorIs(t, err, ErrToolExists)

	_, ok := code.Get(HashSource(src))
	assert.False(t, ok, "losing registration must leave no source behind")
}

func TestRegisterScript(t *testing.T) {
	runner := &stubScriptRunner{result: int64(7)}
	code := NewMemoryCodeStore()
	reg := New(Config{Code: code, ScriptRunner: runner})
	ctx := context.Background()

	tool, err := reg.RegisterScript(ctx, "lookup", []byte(scriptSrc), policy.NewSnapshot(nil))
	require.NoError(t, err)

	// Source is stored content-addressed.
	stored, ok := code.Get(tool.Hash())
	require.True(t, ok)
	assert.Equal(t, scriptSrc, string(stored))

	out, err := reg.Execute(ctx, "lookup", map[string]interface{}{"x": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(7), out)
	assert.Equal(t, "lookup", runner.lastName)
	assert.Equal(t, scriptSrc, string(runner.lastSrc))
}

func TestRegisterScriptRejectedByPolicy(t *testing.T) {
	reg := New(Config{})
	ctx := context.Background()

	src := []byte("def execute(args):\n    return eval(args[\"expr\"])\n")
	_, err := reg.RegisterScript(ctx, "evil", src, policy.NewSnapshot(nil))
	assert.ErrorIs(t, err, ErrToolRejected)
	assert.Contains(t, err.Error(), "blocked")
	assert.Empty(t, reg.List())
}

func TestCachedRejectionSkipsValidation(t *testing.T) {
	cache := NewMemoryDecisionCache()
	ctx := context.Background()

	query := "SELECT 1"
	key := DecisionKey(HashSource([]byte(query)), queryFingerprint)
	require.NoError(t, cache.Put(ctx, key, Decision{Allowed: false, Reason: "previously rejected"}))

	reg := New(Config{Cache: cache})
	// The query itself is valid; the cached verdict must win.
	_, err := reg.RegisterQuery(ctx, "q", query)
	require.ErrorIs(t, err, ErrToolRejected)
	assert.Contains(t, err.Error(), "previously rejected")
}

func TestCachedAcceptanceSkipsValidation(t *testing.T) {
	cache := NewMemoryDecisionCache()
	ctx := context.Background()

	query := "DROP TABLE users"
	key := DecisionKey(HashSource([]byte(query)), queryFingerprint)
	require.NoError(t, cache.Put(ctx, key, Decision{Allowed: true}))

	reg := New(Config{Cache: cache})
	// The query would never pass validation; registration succeeding
	// proves the cached verdict short-circuited it.
	_, err := reg.RegisterQuery(ctx, "q", query)
	assert.NoError(t, err)
}

func TestRejectionIsCached(t *testing.T) {
	cache := NewMemoryDecisionCache()
	ctx := context.Background()
	reg := New(Config{Cache: cache})

	query := "DELETE FROM users"
	_, err := reg.RegisterQuery(ctx, "bad", query)
	require.ErrorIs(t, err, ErrToolRejected)

	d, err := cache.Get(ctx, DecisionKey(HashSource([]byte(query)), queryFingerprint))
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.False(t, d.Allowed)
	assert.NotEmpty(t, d.Reason)
}

func TestPolicyFingerprintPartitionsDecisions(t *testing.T) {
	cache := NewMemoryDecisionCache()
	ctx := context.Background()
	src := []byte("def execute(args):\n    return eval(args[\"expr\"])\n")

	strict := policy.NewSnapshot(nil)
	lenient := policy.NewSnapshot([]policy.Rule{
		{Type: policy.RuleAllow, Category: policy.CategoryFunction, Pattern: "eval", Active: true},
	})

	reg := New(Config{Cache: cache})
	_, err := reg.RegisterScript(ctx, "a", src, strict)
	require.ErrorIs(t, err, ErrToolRejected)

	// Same content under a different policy is a different decision.
	_, err = reg.RegisterScript(ctx, "b", src, lenient)
	assert.NoError(t, err)
}

func TestRemove(t *testing.T) {
	reg := New(Config{})
	ctx := context.Background()

	_, err := reg.RegisterQuery(ctx, "q", "SELECT 1")
	require.NoError(t, err)
	require.NoError(t, reg.Remove("q"))
	assert.ErrorIs(t, reg.Remove("q"), ErrToolNotFound)
}

func TestRedisDecisionCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	cache := NewRedisDecisionCache(client, time.Minute)
	ctx := context.Background()

	// Miss is a nil decision, not an error.
	d, err := cache.Get(ctx, DecisionKey("nope", "fp"))
	require.NoError(t, err)
	assert.Nil(t, d)

	key := DecisionKey("abc", "fp")
	require.NoError(t, cache.Put(ctx, key, Decision{Allowed: false, Reason: "module import blocked"}))

	d, err = cache.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.False(t, d.Allowed)
	assert.Equal(t, "module import blocked", d.Reason)

	// Entries expire.
	srv.FastForward(2 * time.Minute)
	d, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, d)
}
