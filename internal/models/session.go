package models

import "time"

// ClientInfo is advisory metadata about a polling client.
type ClientInfo struct {
	UserAgent string `db:"user_agent" json:"user_agent"`
	IP        string `db:"ip" json:"ip"`
}

// Session is a polling client's logical connection, keyed by an opaque token.
type Session struct {
	SessionID    string    `db:"session_id" json:"session_id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
	UserAgent    string    `db:"user_agent" json:"user_agent"`
	IP           string    `db:"ip" json:"ip"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
