// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type personaContextKey struct{}

// PersonaFromContext returns the authenticated persona, or "" when auth is
// off or the token carries no persona claim.
func PersonaFromContext(ctx context.Context) string {
	persona, _ := ctx.Value(personaContextKey{}).(string)
	return persona
}

// authMiddleware verifies the bearer token and stashes the persona claim.
// With auth disabled every request passes through; the persona can still
// arrive via the X-Persona header for policy scoping.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.AuthEnabled {
			persona := r.Header.Get("X-Persona")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), personaContextKey{}, persona)))
			return
		}

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token", "unauthorized")
			return
		}

		claims, err := s.parseToken(raw)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token", "unauthorized")
			return
		}

		persona, _ := claims["persona"].(string)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), personaContextKey{}, persona)))
	})
}

func (s *Server) parseToken(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
