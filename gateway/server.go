// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"axonflow/toolgate/gate/policy"
	"axonflow/toolgate/gate/scriptguard"
	"axonflow/toolgate/gate/sqlguard"
	"axonflow/toolgate/registry"
	"axonflow/toolgate/runtime"
	"axonflow/toolgate/shared/logger"
	"axonflow/toolgate/store"
)

// Server is the gateway HTTP service.
type Server struct {
	cfg    Config
	router *mux.Router
	cors   *cors.Cors
	log    *logger.Logger

	queries *sqlguard.Validator
	scripts *scriptguard.Validator

	registry *registry.Registry
	rules    *store.RuleRepository
	audit    *AuditTrail
}

// Deps carries externally-constructed collaborators. Every field is
// optional; New fills the gaps with in-memory defaults so tests and
// single-binary deployments need no infrastructure.
type Deps struct {
	// DB backs rule persistence and the audit trail.
	DB *sql.DB

	// QueryDB is the guarded query backend validated queries run against.
	// Nil falls back to DB.
	QueryDB *sql.DB

	// Redis backs the shared decision cache.
	Redis *redis.Client

	// Registry overrides the default registry construction.
	Registry *registry.Registry

	// Audit overrides the default audit trail.
	Audit *AuditTrail
}

// New assembles a server from config and dependencies.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		log:     logger.New("gateway"),
		queries: sqlguard.NewValidator(),
		scripts: scriptguard.NewValidator(),
	}

	if deps.DB != nil {
		s.rules = store.NewRuleRepository(deps.DB)
	}

	s.audit = deps.Audit
	if s.audit == nil {
		s.audit = NewAuditTrail(AuditTrailConfig{
			DB:        deps.DB,
			QueueSize: cfg.AuditQueueSize,
			Workers:   cfg.AuditWorkers,
		})
	}

	s.registry = deps.Registry
	if s.registry == nil {
		var cache registry.DecisionCache
		if deps.Redis != nil {
			cache = registry.NewRedisDecisionCache(deps.Redis, cfg.DecisionCacheTTL)
		}
		queryDB := deps.QueryDB
		if queryDB == nil {
			queryDB = deps.DB
		}
		var queryRunner registry.QueryRunner
		if queryDB != nil {
			queryRunner = runtime.NewExecutor(queryDB)
		}
		s.registry = registry.New(registry.Config{
			Cache:        cache,
			QueryRunner:  queryRunner,
			ScriptRunner: runtime.NewRuntime(runtime.WithMaxSteps(cfg.MaxScriptSteps)),
		})
	}

	s.router = mux.NewRouter()
	s.cors = cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/validate/query", s.handleValidateQuery).Methods("POST")
	api.HandleFunc("/validate/script", s.handleValidateScript).Methods("POST")

	api.HandleFunc("/tools", s.handleRegisterTool).Methods("POST")
	api.HandleFunc("/tools", s.handleListTools).Methods("GET")
	api.HandleFunc("/tools/{name}", s.handleRemoveTool).Methods("DELETE")
	api.HandleFunc("/tools/{name}/execute", s.handleExecuteTool).Methods("POST")

	api.HandleFunc("/policy/rules", s.handleCreateRule).Methods("POST")
	api.HandleFunc("/policy/rules", s.handleListRules).Methods("GET")
	api.HandleFunc("/policy/rules/{id}", s.handleDeleteRule).Methods("DELETE")
	api.HandleFunc("/policy/rules/{id}", s.handleToggleRule).Methods("PATCH")

	api.HandleFunc("/audit/stats", s.handleAuditStats).Methods("GET")
}

// Handler returns the full middleware-wrapped handler, exported for tests.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	log.Printf("toolgate gateway starting on port %s", s.cfg.Port)
	return http.ListenAndServe(":"+s.cfg.Port, s.Handler())
}

// Shutdown drains background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.audit.Shutdown(ctx)
}

// snapshot resolves the effective policy for a request. Order: disabled by
// config, persisted rules when a database is present, built-ins otherwise.
func (s *Server) snapshot(r *http.Request, persona string) (policy.Snapshot, error) {
	if s.cfg.PolicyDisabled {
		return policy.Disabled(), nil
	}
	if s.rules != nil {
		return s.rules.ActiveSnapshot(r.Context(), persona)
	}
	return policy.NewSnapshot(nil), nil
}

func (s *Server) recordVerdict(r *http.Request, entry VerdictEntry) {
	if err := s.audit.Record(r.Context(), entry); err != nil {
		s.log.Error(entry.Persona, entry.RequestID, "failed to record verdict",
			map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

type errorResponse struct {
	Error      string `json:"error"`
	ReasonCode string `json:"reason_code"`
	Timestamp  string `json:"timestamp"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, code string) {
	s.writeJSON(w, status, errorResponse{
		Error:      msg,
		ReasonCode: code,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}
