// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"axonflow/toolgate/gate/policy"
	"axonflow/toolgate/gate/scriptguard"
	"axonflow/toolgate/gate/sqlguard"
	"axonflow/toolgate/registry"
	"axonflow/toolgate/store"
)

// Reason codes carried in rejection responses and audit entries.
const (
	codeEmptyInput         = "empty_input"
	codeMultipleStatements = "multiple_statements"
	codeNotReadOnly        = "not_read_only"
	codeForbiddenKeyword   = "forbidden_keyword"
	codeParseFailure       = "parse_failure"
	codeMalformedScript    = "malformed_script"
	codeInvalidTopLevel    = "invalid_top_level_node"
	codeForbiddenModule    = "forbidden_module"
	codeForbiddenFunction  = "forbidden_function"
	codeForbiddenAttribute = "forbidden_attribute_call"
	codeToolRejected       = "tool_rejected"
	codeInternal           = "internal_error"
)

// reasonCode maps a rejection to its stable wire code.
func reasonCode(err error) string {
	switch {
	case errors.Is(err, sqlguard.ErrEmptyInput):
		return codeEmptyInput
	case errors.Is(err, sqlguard.ErrMultipleStatements):
		return codeMultipleStatements
	case errors.Is(err, sqlguard.ErrNotReadOnly):
		return codeNotReadOnly
	case errors.Is(err, sqlguard.ErrForbiddenKeyword):
		return codeForbiddenKeyword
	case errors.Is(err, sqlguard.ErrParseFailure):
		return codeParseFailure
	case errors.Is(err, scriptguard.ErrMalformedScript):
		return codeMalformedScript
	case errors.Is(err, scriptguard.ErrInvalidTopLevelNode):
		return codeInvalidTopLevel
	case errors.Is(err, policy.ErrForbiddenModule):
		return codeForbiddenModule
	case errors.Is(err, policy.ErrForbiddenFunction):
		return codeForbiddenFunction
	case errors.Is(err, policy.ErrForbiddenAttributeCall):
		return codeForbiddenAttribute
	case errors.Is(err, registry.ErrToolRejected):
		return codeToolRejected
	}
	return codeInternal
}

type validateQueryRequest struct {
	Query string `json:"query"`
}

type validateQueryResponse struct {
	Allowed    bool   `json:"allowed"`
	Tier       string `json:"tier,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ReasonCode string `json:"reason_code,omitempty"`
}

func (s *Server) handleValidateQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()
	persona := PersonaFromContext(r.Context())

	var req validateQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}

	resp := validateQueryResponse{Allowed: true}
	outcome := OutcomeAccepted
	result, err := s.queries.Validate(req.Query)
	if err != nil {
		resp = validateQueryResponse{
			Allowed:    false,
			Reason:     err.Error(),
			ReasonCode: reasonCode(err),
		}
		outcome = OutcomeRejected
		promBlockedTotal.WithLabelValues(resp.ReasonCode).Inc()
		s.log.Rejection(persona, requestID, "query rejected", resp.ReasonCode, nil)
	} else {
		resp.Tier = string(result.Tier)
	}

	elapsed := time.Since(start)
	promValidationsTotal.WithLabelValues("query", string(outcome)).Inc()
	promValidationDuration.WithLabelValues("query").Observe(float64(elapsed.Milliseconds()))

	s.recordVerdict(r, VerdictEntry{
		RequestID:        requestID,
		Persona:          persona,
		ContentType:      "query",
		ContentHash:      registry.HashSource([]byte(req.Query)),
		Outcome:          outcome,
		ReasonCode:       resp.ReasonCode,
		Reason:           resp.Reason,
		ProcessingTimeMs: elapsed.Milliseconds(),
	})

	s.writeJSON(w, http.StatusOK, resp)
}

type validateScriptRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type validateScriptResponse struct {
	Allowed      bool     `json:"allowed"`
	Reason       string   `json:"reason,omitempty"`
	ReasonCode   string   `json:"reason_code,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Docstring    string   `json:"docstring,omitempty"`
}

func (s *Server) handleValidateScript(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.New().String()
	persona := PersonaFromContext(r.Context())

	var req validateScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if req.Name == "" {
		req.Name = "script.star"
	}

	snap, err := s.snapshot(r, persona)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load policy", codeInternal)
		return
	}

	resp := validateScriptResponse{Allowed: true}
	outcome := OutcomeAccepted
	report, err := s.scripts.Validate(req.Name, []byte(req.Source), snap)
	if err != nil {
		resp = validateScriptResponse{
			Allowed:    false,
			Reason:     err.Error(),
			ReasonCode: reasonCode(err),
		}
		outcome = OutcomeRejected
		promBlockedTotal.WithLabelValues(resp.ReasonCode).Inc()
		s.log.Rejection(persona, requestID, "script rejected", resp.ReasonCode, nil)
	} else {
		resp.Capabilities = capabilityPatterns(report.Capabilities)
		resp.Docstring = report.Docstring
	}

	elapsed := time.Since(start)
	promValidationsTotal.WithLabelValues("script", string(outcome)).Inc()
	promValidationDuration.WithLabelValues("script").Observe(float64(elapsed.Milliseconds()))

	s.recordVerdict(r, VerdictEntry{
		RequestID:         requestID,
		Persona:           persona,
		ContentType:       "script",
		ContentHash:       registry.HashSource([]byte(req.Source)),
		Outcome:           outcome,
		ReasonCode:        resp.ReasonCode,
		Reason:            resp.Reason,
		PolicyFingerprint: snap.Fingerprint(),
		Capabilities:      resp.Capabilities,
		ProcessingTimeMs:  elapsed.Milliseconds(),
	})

	s.writeJSON(w, http.StatusOK, resp)
}

type registerToolRequest struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Query  string `json:"query,omitempty"`
	Source string `json:"source,omitempty"`
}

type toolResponse struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Hash string `json:"hash"`
}

func (s *Server) handleRegisterTool(w http.ResponseWriter, r *http.Request) {
	persona := PersonaFromContext(r.Context())
	requestID := uuid.New().String()

	var req registerToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}

	var (
		tool registry.Tool
		err  error
		hash string
	)
	switch registry.ToolKind(req.Kind) {
	case registry.KindQuery:
		var qt *registry.QueryTool
		qt, err = s.registry.RegisterQuery(r.Context(), req.Name, req.Query)
		if qt != nil {
			tool, hash = qt, qt.Hash()
		}
	case registry.KindScript:
		var snap policy.Snapshot
		snap, err = s.snapshot(r, persona)
		if err == nil {
			var st *registry.ScriptTool
			st, err = s.registry.RegisterScript(r.Context(), req.Name, []byte(req.Source), snap)
			if st != nil {
				tool, hash = st, st.Hash()
			}
		}
	default:
		s.writeError(w, http.StatusBadRequest, "kind must be query or script", "bad_request")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, registry.ErrToolExists):
			s.writeError(w, http.StatusConflict, err.Error(), "tool_exists")
		case errors.Is(err, registry.ErrToolRejected):
			code := codeToolRejected
			promBlockedTotal.WithLabelValues(code).Inc()
			s.log.Rejection(persona, requestID, "tool registration rejected", code,
				map[string]interface{}{"tool": req.Name})
			s.writeError(w, http.StatusUnprocessableEntity, err.Error(), code)
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error(), codeInternal)
		}
		return
	}

	s.writeJSON(w, http.StatusCreated, toolResponse{
		Name: tool.Name(),
		Kind: string(tool.Kind()),
		Hash: hash,
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tools": s.registry.List()})
}

func (s *Server) handleRemoveTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.registry.Remove(name); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error(), "tool_not_found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type executeToolRequest struct {
	Args map[string]interface{} `json:"args"`
}

type executeToolResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	persona := PersonaFromContext(r.Context())
	requestID := uuid.New().String()

	var req executeToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}

	tool, err := s.registry.Get(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error(), "tool_not_found")
		return
	}

	start := time.Now()
	data, err := tool.Execute(r.Context(), req.Args)
	if err != nil {
		promExecutionsTotal.WithLabelValues(string(tool.Kind()), "error").Inc()
		s.log.ErrorWithCode(persona, requestID, "tool execution failed", http.StatusBadGateway, err,
			map[string]interface{}{"tool": name})
		s.writeJSON(w, http.StatusBadGateway, executeToolResponse{Success: false, Error: err.Error()})
		return
	}

	promExecutionsTotal.WithLabelValues(string(tool.Kind()), "success").Inc()
	s.log.InfoWithDuration(persona, requestID, "tool executed",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{"tool": name})
	s.writeJSON(w, http.StatusOK, executeToolResponse{Success: true, Data: data})
}

type createRuleRequest struct {
	Persona     string `json:"persona,omitempty"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Pattern     string `json:"pattern"`
	Active      *bool  `json:"active,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.writeError(w, http.StatusNotImplemented, "rule persistence is not configured", "no_database")
		return
	}

	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	rule := &store.StoredRule{
		Persona:     req.Persona,
		Type:        policy.RuleType(req.Type),
		Category:    policy.Category(req.Category),
		Pattern:     req.Pattern,
		Active:      active,
		Description: req.Description,
	}
	if err := s.rules.Create(r.Context(), rule, PersonaFromContext(r.Context())); err != nil {
		if errors.Is(err, store.ErrInvalidRule) {
			s.writeError(w, http.StatusBadRequest, err.Error(), "invalid_rule")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error(), codeInternal)
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.writeError(w, http.StatusNotImplemented, "rule persistence is not configured", "no_database")
		return
	}
	persona := r.URL.Query().Get("persona")
	rules, err := s.rules.List(r.Context(), persona)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), codeInternal)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":    rules,
		"builtins": builtinSummary(),
	})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.writeError(w, http.StatusNotImplemented, "rule persistence is not configured", "no_database")
		return
	}
	if err := s.rules.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error(), "rule_not_found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error(), codeInternal)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type toggleRuleRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		s.writeError(w, http.StatusNotImplemented, "rule persistence is not configured", "no_database")
		return
	}
	var req toggleRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if err := s.rules.SetActive(r.Context(), mux.Vars(r)["id"], req.Active); err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error(), "rule_not_found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error(), codeInternal)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuditStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.audit.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "toolgate",
		"timestamp": time.Now().UTC(),
	})
}

func capabilityPatterns(caps []policy.Capability) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c.Category)+":"+c.Pattern())
	}
	return out
}

func builtinSummary() map[string][]string {
	return map[string][]string{
		"module":    policy.BuiltinDenyPatterns(policy.CategoryModule),
		"function":  policy.BuiltinDenyPatterns(policy.CategoryFunction),
		"attribute": policy.BuiltinDenyPatterns(policy.CategoryAttribute),
	}
}
