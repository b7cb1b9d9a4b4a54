package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/tributary-ai-services/llm-gateway/config"
)

// schema is the DDL for the two tables named in spec.md §6. gorm's
// AutoMigrate (used by cmd/gateway) covers ordinary startup; this
// standalone runner exists for environments that apply migrations as a
// separate deploy step ahead of bringing the gateway process up.
const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS request_logs (
	id                 uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	timestamp          timestamptz NOT NULL,
	model_used         varchar(300) NOT NULL,
	input_tokens       integer NOT NULL,
	output_tokens      integer NOT NULL,
	estimated_cost_usd decimal(18,6) NOT NULL,
	provider_name      varchar(100) NOT NULL,
	response_time_ms   bigint NOT NULL,
	was_fallback       boolean NOT NULL DEFAULT false
);
CREATE INDEX IF NOT EXISTS idx_request_logs_timestamp ON request_logs (timestamp);
CREATE INDEX IF NOT EXISTS idx_request_logs_provider_name ON request_logs (provider_name);

CREATE TABLE IF NOT EXISTS model_pricing (
	id                        uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	model_name                varchar(300) NOT NULL UNIQUE,
	provider_name             varchar(100) NOT NULL,
	input_cost_per_1m_tokens  decimal(18,6) NOT NULL,
	output_cost_per_1m_tokens decimal(18,6) NOT NULL,
	max_context_tokens        integer NOT NULL,
	updated_at                timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_model_pricing_provider_name ON model_pricing (provider_name);
`

func main() {
	fmt.Println("Applying llm-gateway schema migration...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("connected to database")

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	fmt.Println("migration applied successfully")
}
