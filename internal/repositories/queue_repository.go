package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"delivery-service/internal/models"
)

// LoadedQueue is a queue snapshot with external message bodies resolved
// for the pending refs.
type LoadedQueue struct {
	Queue           models.Queue
	PendingMessages []models.DeliveredMessage
	PendingNotices  []models.SystemNotice
}

// QueueRepository defines the store primitives for per-user inboxes.
type QueueRepository interface {
	UpsertAppendMessage(ctx context.Context, userID, messageID int64, addedAt time.Time) (models.Queue, error)
	UpsertAppendSystem(ctx context.Context, userID int64, notice models.SystemNotice) (models.Queue, error)
	LoadQueue(ctx context.Context, userID int64) (*LoadedQueue, error)
	MarkDelivered(ctx context.Context, userID int64, messageIDs []int64, noticeIDs []string, now time.Time) error
	PullDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// QueueRepo is a sqlx-backed repository.
type QueueRepo struct {
	db        *sqlx.DB
	opTimeout time.Duration
}

// NewQueueRepo constructs QueueRepo. opTimeout bounds every store call.
func NewQueueRepo(db *sqlx.DB, opTimeout time.Duration) *QueueRepo {
	return &QueueRepo{db: db, opTimeout: opTimeout}
}

func (r *QueueRepo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

const upsertQueueQuery = `INSERT INTO queues (user_id) VALUES ($1)
    ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
    RETURNING user_id, last_polled_at, created_at, updated_at`

// UpsertAppendMessage creates the queue if absent and appends the ref.
// Appending an already queued message id is a no-op.
func (r *QueueRepo) UpsertAppendMessage(ctx context.Context, userID, messageID int64, addedAt time.Time) (models.Queue, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var queue models.Queue
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return queue, storageErr("upsert append message", err)
	}
	defer tx.Rollback()

	if err := tx.GetContext(ctx, &queue, upsertQueueQuery, userID); err != nil {
		return queue, storageErr("upsert append message", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO queue_messages (user_id, message_id, added_at)
        VALUES ($1, $2, $3) ON CONFLICT (user_id, message_id) DO NOTHING`, userID, messageID, addedAt)
	if err != nil {
		return queue, storageErr("upsert append message", err)
	}

	if err := tx.Commit(); err != nil {
		return queue, storageErr("upsert append message", err)
	}
	return queue, nil
}

// UpsertAppendSystem creates the queue if absent and appends the notice.
func (r *QueueRepo) UpsertAppendSystem(ctx context.Context, userID int64, notice models.SystemNotice) (models.Queue, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var queue models.Queue
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return queue, storageErr("upsert append system", err)
	}
	defer tx.Rollback()

	if err := tx.GetContext(ctx, &queue, upsertQueueQuery, userID); err != nil {
		return queue, storageErr("upsert append system", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO queue_system_messages (user_id, notice_id, kind, content, metadata, added_at)
        VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (user_id, notice_id) DO NOTHING`,
		userID, notice.NoticeID, notice.Kind, notice.Content, notice.Metadata, notice.AddedAt)
	if err != nil {
		return queue, storageErr("upsert append system", err)
	}

	if err := tx.Commit(); err != nil {
		return queue, storageErr("upsert append system", err)
	}
	return queue, nil
}

// LoadQueue returns the user's queue with pending message bodies resolved,
// or nil when the user has no queue yet.
func (r *QueueRepo) LoadQueue(ctx context.Context, userID int64) (*LoadedQueue, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var queue models.Queue
	err := r.db.GetContext(ctx, &queue, `SELECT user_id, last_polled_at, created_at, updated_at FROM queues WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("load queue", err)
	}

	err = r.db.SelectContext(ctx, &queue.Messages, `SELECT message_id, added_at, delivered
        FROM queue_messages WHERE user_id=$1 ORDER BY added_at, message_id`, userID)
	if err != nil {
		return nil, storageErr("load queue", err)
	}

	err = r.db.SelectContext(ctx, &queue.SystemMessages, `SELECT notice_id, kind, content, metadata, added_at, delivered
        FROM queue_system_messages WHERE user_id=$1 ORDER BY added_at, notice_id`, userID)
	if err != nil {
		return nil, storageErr("load queue", err)
	}

	loaded := &LoadedQueue{Queue: queue}
	for _, notice := range queue.SystemMessages {
		if !notice.Delivered {
			loaded.PendingNotices = append(loaded.PendingNotices, notice)
		}
	}

	resolved, err := r.resolvePending(ctx, userID)
	if err != nil {
		return nil, err
	}
	loaded.PendingMessages = resolved
	return loaded, nil
}

// resolvePending joins pending refs against the chat schema to materialize
// message bodies with sender and group projections. A ref whose external
// message row is gone still comes back as a bare ref, so this result is the
// single source of truth for what a drain hands out and marks delivered.
func (r *QueueRepo) resolvePending(ctx context.Context, userID int64) ([]models.DeliveredMessage, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT qm.message_id, qm.added_at,
            COALESCE(m.content, ''), COALESCE(m.sender_id, 0),
            COALESCE(u.username, ''), COALESCE(u.avatar, ''), COALESCE(u.status, ''),
            g.name, g.avatar
        FROM queue_messages qm
        LEFT JOIN messages m ON m.id = qm.message_id
        LEFT JOIN users u ON u.id = m.sender_id
        LEFT JOIN groups g ON g.id = m.group_id
        WHERE qm.user_id=$1 AND qm.delivered = FALSE
        ORDER BY qm.added_at, qm.message_id`, userID)
	if err != nil {
		return nil, storageErr("resolve pending", err)
	}
	defer rows.Close()

	var resolved []models.DeliveredMessage
	for rows.Next() {
		var msg models.DeliveredMessage
		var groupName, groupAvatar sql.NullString
		err := rows.Scan(&msg.MessageID, &msg.AddedAt, &msg.Content, &msg.SenderID,
			&msg.Sender.Username, &msg.Sender.Avatar, &msg.Sender.Status,
			&groupName, &groupAvatar)
		if err != nil {
			return nil, storageErr("resolve pending", err)
		}
		if groupName.Valid {
			msg.Group = &models.GroupInfo{Name: groupName.String, Avatar: groupAvatar.String}
		}
		resolved = append(resolved, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("resolve pending", err)
	}
	return resolved, nil
}

// MarkDelivered flips the listed items to delivered and advances
// last_polled_at under a single transaction. Items enqueued after the
// transaction begins stay pending.
func (r *QueueRepo) MarkDelivered(ctx context.Context, userID int64, messageIDs []int64, noticeIDs []string, now time.Time) error {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("mark delivered", err)
	}
	defer tx.Rollback()

	if len(messageIDs) > 0 {
		_, err = tx.ExecContext(ctx, `UPDATE queue_messages SET delivered = TRUE
            WHERE user_id=$1 AND message_id = ANY($2) AND delivered = FALSE`, userID, pq.Array(messageIDs))
		if err != nil {
			return storageErr("mark delivered", err)
		}
	}

	if len(noticeIDs) > 0 {
		_, err = tx.ExecContext(ctx, `UPDATE queue_system_messages SET delivered = TRUE
            WHERE user_id=$1 AND notice_id = ANY($2) AND delivered = FALSE`, userID, pq.Array(noticeIDs))
		if err != nil {
			return storageErr("mark delivered", err)
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE queues SET last_polled_at=$2, updated_at=NOW() WHERE user_id=$1`, userID, now)
	if err != nil {
		return storageErr("mark delivered", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("mark delivered", err)
	}
	return nil
}

// PullDeliveredBefore removes every delivered item older than cutoff across
// all queues. Queue rows are kept.
func (r *QueueRepo) PullDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := r.opCtx(ctx)
	defer cancel()

	var removed int64
	res, err := r.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE delivered AND added_at < $1`, cutoff)
	if err != nil {
		return 0, storageErr("pull delivered", err)
	}
	if count, err := res.RowsAffected(); err == nil {
		removed += count
	}

	res, err = r.db.ExecContext(ctx, `DELETE FROM queue_system_messages WHERE delivered AND added_at < $1`, cutoff)
	if err != nil {
		return removed, storageErr("pull delivered", err)
	}
	if count, err := res.RowsAffected(); err == nil {
		removed += count
	}
	return removed, nil
}

var _ QueueRepository = (*QueueRepo)(nil)
