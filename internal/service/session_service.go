package service

import (
	"context"
	"log"
	"time"

	"delivery-service/internal/models"
	"delivery-service/internal/repositories"
)

// SessionTracker associates polling clients with users and tracks liveness.
type SessionTracker struct {
	repo         repositories.SessionRepository
	idleTTL      time.Duration
	activeWindow time.Duration
	now          func() time.Time
}

// NewSessionTracker constructs a SessionTracker. idleTTL is how long a
// session may stay silent before the janitor deactivates it; activeWindow
// is the recency bound for presence queries.
func NewSessionTracker(repo repositories.SessionRepository, idleTTL, activeWindow time.Duration) *SessionTracker {
	return &SessionTracker{repo: repo, idleTTL: idleTTL, activeWindow: activeWindow, now: time.Now}
}

// Touch creates the session or refreshes its last activity.
func (t *SessionTracker) Touch(ctx context.Context, sessionID string, userID int64, info models.ClientInfo) error {
	if err := t.repo.UpsertSession(ctx, sessionID, userID, info, t.now()); err != nil {
		log.Printf("session touch failed session_id=%s user_id=%d: %v", sessionID, userID, err)
		return err
	}
	return nil
}

// ActiveFor returns the user's sessions seen within the active window,
// consumed by presence queries.
func (t *SessionTracker) ActiveFor(ctx context.Context, userID int64) ([]models.Session, error) {
	sessions, err := t.repo.ListActiveSessions(ctx, userID, t.now().Add(-t.activeWindow))
	if err != nil {
		log.Printf("active sessions lookup failed user_id=%d: %v", userID, err)
		return nil, err
	}
	return sessions, nil
}

// Reap deactivates sessions idle past the TTL and returns the count.
func (t *SessionTracker) Reap(ctx context.Context, now time.Time) (int64, error) {
	count, err := t.repo.DeactivateIdleBefore(ctx, now.Add(-t.idleTTL))
	if err != nil {
		log.Printf("session reap failed: %v", err)
		return 0, err
	}
	return count, nil
}
