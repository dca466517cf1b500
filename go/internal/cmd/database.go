package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/feud/go/internal/dbconfig"
)

func setupDatabase(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	dbConfig := dbconfig.NewConfigFromEnv()
	if cfg.databaseURL != "" {
		dbConfig.URL = cfg.databaseURL
	}

	pool, err := pgxpool.New(ctx, dbConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("database", dbConfig.Redacted()).Msg("connected to database")
	return pool, nil
}
