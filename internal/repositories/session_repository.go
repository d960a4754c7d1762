package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"delivery-service/internal/models"
)

// SessionRepository defines the store primitives for poll sessions.
type SessionRepository interface {
	UpsertSession(ctx context.Context, sessionID string, userID int64, info models.ClientInfo, now time.Time) error
	ListActiveSessions(ctx context.Context, userID int64, since time.Time) ([]models.Session, error)
	DeactivateIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionRepo is a sqlx-backed repository.
type SessionRepo struct {
	db        *sqlx.DB
	opTimeout time.Duration
}

// NewSessionRepo constructs SessionRepo.
func NewSessionRepo(db *sqlx.DB, opTimeout time.Duration) *SessionRepo {
	return &SessionRepo{db: db, opTimeout: opTimeout}
}

// UpsertSession creates the session or refreshes its last activity.
// Session ids are globally unique: a touch with a mismatched user fails,
// and a reaped session is never reactivated.
func (r *SessionRepo) UpsertSession(ctx context.Context, sessionID string, userID int64, info models.ClientInfo, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO sessions (session_id, user_id, last_activity, user_agent, ip)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (session_id) DO UPDATE
            SET last_activity = EXCLUDED.last_activity,
                user_agent = EXCLUDED.user_agent,
                ip = EXCLUDED.ip,
                updated_at = NOW()
            WHERE sessions.user_id = EXCLUDED.user_id AND sessions.active`,
		sessionID, userID, now, info.UserAgent, info.IP)
	if err != nil {
		return storageErr("upsert session", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return storageErr("upsert session", err)
	}
	if count > 0 {
		return nil
	}

	// The conflict update matched nothing: the row belongs to another user
	// or has been reaped.
	var existing models.Session
	err = r.db.GetContext(ctx, &existing, `SELECT session_id, user_id, last_activity, user_agent, ip, active, created_at, updated_at
        FROM sessions WHERE session_id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		// Row vanished between statements; treat as expired and let the
		// client mint a fresh session id.
		return ErrSessionExpired
	}
	if err != nil {
		return storageErr("upsert session", err)
	}
	if existing.UserID != userID {
		return ErrSessionOwnerMismatch
	}
	return ErrSessionExpired
}

// ListActiveSessions returns the user's sessions active since the given time.
func (r *SessionRepo) ListActiveSessions(ctx context.Context, userID int64, since time.Time) ([]models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	var sessions []models.Session
	err := r.db.SelectContext(ctx, &sessions, `SELECT session_id, user_id, last_activity, user_agent, ip, active, created_at, updated_at
        FROM sessions WHERE user_id=$1 AND active AND last_activity > $2
        ORDER BY last_activity DESC`, userID, since)
	if err != nil {
		return nil, storageErr("list active sessions", err)
	}
	return sessions, nil
}

// DeactivateIdleBefore marks idle sessions inactive and returns the count.
func (r *SessionRepo) DeactivateIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = FALSE, updated_at = NOW()
        WHERE active AND last_activity < $1`, cutoff)
	if err != nil {
		return 0, storageErr("deactivate idle sessions", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("deactivate idle sessions", err)
	}
	return count, nil
}

var _ SessionRepository = (*SessionRepo)(nil)
