package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS queues (
            user_id BIGINT PRIMARY KEY,
            last_polled_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS queue_messages (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES queues(user_id) ON DELETE CASCADE,
            message_id BIGINT NOT NULL,
            added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            delivered BOOLEAN NOT NULL DEFAULT FALSE,
            UNIQUE(user_id, message_id)
        );`,
		`CREATE TABLE IF NOT EXISTS queue_system_messages (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES queues(user_id) ON DELETE CASCADE,
            notice_id TEXT NOT NULL,
            kind TEXT NOT NULL DEFAULT 'system',
            content TEXT NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}',
            added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            delivered BOOLEAN NOT NULL DEFAULT FALSE,
            UNIQUE(user_id, notice_id)
        );`,
		`CREATE TABLE IF NOT EXISTS sessions (
            session_id TEXT PRIMARY KEY,
            user_id BIGINT NOT NULL,
            last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            user_agent TEXT NOT NULL DEFAULT '',
            ip TEXT NOT NULL DEFAULT '',
            active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_queue_messages_reap ON queue_messages (added_at) WHERE delivered;`,
		`CREATE INDEX IF NOT EXISTS idx_queue_system_messages_reap ON queue_system_messages (added_at) WHERE delivered;`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions (user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions (last_activity);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
