// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the toolgate service.
//
// Toolgate sits between an untrusted producer of queries and scripts and
// the systems that would execute them. It validates single-statement
// read-only SQL, checks script structure and capabilities against policy,
// and exposes a registry of validated tools over HTTP.
//
// Usage:
//
//	./toolgate -config config.yaml
//
// Environment Variables:
//
//	TOOLGATE_PORT                 - HTTP server port (default: 8080)
//	TOOLGATE_DATABASE_URL         - PostgreSQL connection string
//	TOOLGATE_QUERY_BACKEND_DRIVER - driver for the guarded query backend (postgres, mysql)
//	TOOLGATE_QUERY_BACKEND_URL    - connection string for the guarded query backend
//	TOOLGATE_REDIS_ADDR           - Redis address for the decision cache
//	TOOLGATE_AUTH_ENABLED         - require bearer tokens on API routes
//	TOOLGATE_JWT_SECRET           - secret for bearer token validation
//	TOOLGATE_POLICY_DISABLED      - turn off capability policy entirely
package main

import (
	"database/sql"
	"flag"
	"log"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"axonflow/toolgate/gateway"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := gateway.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var deps gateway.Deps

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("database: %v", err)
		}
		deps.DB = db
	}

	if cfg.QueryBackendURL != "" {
		db, err := sql.Open(cfg.QueryBackendDriver, cfg.QueryBackendURL)
		if err != nil {
			log.Fatalf("query backend: %v", err)
		}
		if err := db.Ping(); err != nil {
			log.Fatalf("query backend: %v", err)
		}
		deps.QueryDB = db
	}

	if cfg.RedisAddr != "" {
		deps.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	srv := gateway.New(cfg, deps)
	if err := srv.Run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
