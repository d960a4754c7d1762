package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"delivery-service/internal/models"
	"delivery-service/internal/observability"
	"delivery-service/internal/repositories"
	"delivery-service/internal/telemetry"
)

var (
	// ErrEmptyContent rejects system notices without content.
	ErrEmptyContent = errors.New("notice content must not be empty")
	// ErrInvalidKind rejects unknown notice kinds.
	ErrInvalidKind = errors.New("unknown notice kind")
)

// NoticeInput is the caller-supplied part of a system notice.
type NoticeInput struct {
	Kind     string          `json:"kind"`
	Content  string          `json:"content"`
	Metadata models.Metadata `json:"metadata"`
}

// DrainResult is what a poll returns: resolved messages and raw notices.
type DrainResult struct {
	Messages       []models.DeliveredMessage `json:"messages"`
	SystemMessages []models.SystemNotice     `json:"system_messages"`
	PolledAt       time.Time                 `json:"polled_at"`
}

// Empty reports whether the drain produced nothing.
func (r DrainResult) Empty() bool {
	return len(r.Messages) == 0 && len(r.SystemMessages) == 0
}

// QueueManager enqueues and drains per-user inboxes.
type QueueManager struct {
	repo    repositories.QueueRepository
	emitter *telemetry.DeliveryEmitter
	msgTTL  time.Duration
	now     func() time.Time
}

// NewQueueManager constructs a QueueManager. msgTTL is how long delivered
// items are retained before the janitor removes them.
func NewQueueManager(repo repositories.QueueRepository, emitter *telemetry.DeliveryEmitter, msgTTL time.Duration) *QueueManager {
	return &QueueManager{repo: repo, emitter: emitter, msgTTL: msgTTL, now: time.Now}
}

// EnqueueMessage appends a chat-message ref to the user's queue, creating
// the queue on first use.
func (m *QueueManager) EnqueueMessage(ctx context.Context, userID, messageID int64) error {
	_, err := m.repo.UpsertAppendMessage(ctx, userID, messageID, m.now())
	if err != nil {
		log.Printf("enqueue message failed user_id=%d message_id=%d: %v", userID, messageID, err)
		return err
	}

	observability.IncEnqueued("message")
	m.emitter.Emit(ctx, "message_enqueued", &userID, map[string]any{"message_id": messageID})
	return nil
}

// EnqueueSystem validates and appends a system notice with a fresh notice id.
func (m *QueueManager) EnqueueSystem(ctx context.Context, userID int64, input NoticeInput) (models.SystemNotice, error) {
	if input.Content == "" {
		return models.SystemNotice{}, ErrEmptyContent
	}

	kind := input.Kind
	if kind == "" {
		kind = models.NoticeKindSystem
	}
	if !models.ValidNoticeKind(kind) {
		return models.SystemNotice{}, ErrInvalidKind
	}

	metadata := input.Metadata
	if metadata == nil {
		metadata = models.Metadata{}
	}

	notice := models.SystemNotice{
		NoticeID: uuid.NewString(),
		Kind:     kind,
		Content:  input.Content,
		Metadata: metadata,
		AddedAt:  m.now(),
	}

	if _, err := m.repo.UpsertAppendSystem(ctx, userID, notice); err != nil {
		log.Printf("enqueue system notice failed user_id=%d kind=%s: %v", userID, kind, err)
		return models.SystemNotice{}, err
	}

	observability.IncEnqueued(kind)
	m.emitter.Emit(ctx, "notice_enqueued", &userID, map[string]any{"notice_id": notice.NoticeID, "kind": kind})
	return notice, nil
}

// Drain returns all pending items for the user and marks them delivered.
// Two concurrent drains may both observe the same pending set; clients
// tolerate duplicate receipt and deduplicate by message/notice id.
func (m *QueueManager) Drain(ctx context.Context, userID int64) (DrainResult, error) {
	result := DrainResult{
		Messages:       []models.DeliveredMessage{},
		SystemMessages: []models.SystemNotice{},
		PolledAt:       m.now(),
	}

	loaded, err := m.repo.LoadQueue(ctx, userID)
	if err != nil {
		log.Printf("drain load failed user_id=%d: %v", userID, err)
		return result, err
	}
	if loaded == nil {
		return result, nil
	}

	// The marked set and the returned set must be the same snapshot: a ref
	// enqueued after the pending set was resolved stays pending for the
	// next poll instead of being marked sight unseen.
	messageIDs := make([]int64, 0, len(loaded.PendingMessages))
	for _, msg := range loaded.PendingMessages {
		messageIDs = append(messageIDs, msg.MessageID)
	}
	noticeIDs := make([]string, 0, len(loaded.PendingNotices))
	for _, notice := range loaded.PendingNotices {
		noticeIDs = append(noticeIDs, notice.NoticeID)
	}

	if len(messageIDs) == 0 && len(noticeIDs) == 0 {
		return result, nil
	}

	// Marking must succeed before anything is handed out; on failure the
	// items stay pending and the next poll redelivers them.
	if err := m.repo.MarkDelivered(ctx, userID, messageIDs, noticeIDs, result.PolledAt); err != nil {
		log.Printf("drain mark failed user_id=%d: %v", userID, err)
		return DrainResult{Messages: []models.DeliveredMessage{}, SystemMessages: []models.SystemNotice{}, PolledAt: result.PolledAt}, err
	}

	result.Messages = append(result.Messages, loaded.PendingMessages...)
	result.SystemMessages = append(result.SystemMessages, loaded.PendingNotices...)

	observability.AddDrained("message", len(result.Messages))
	observability.AddDrained("system", len(result.SystemMessages))
	m.emitter.Emit(ctx, "queue_drained", &userID, map[string]any{
		"messages": len(result.Messages),
		"notices":  len(result.SystemMessages),
	})
	return result, nil
}

// Reap removes delivered items older than the retention TTL.
func (m *QueueManager) Reap(ctx context.Context, now time.Time) (int64, error) {
	removed, err := m.repo.PullDeliveredBefore(ctx, now.Add(-m.msgTTL))
	if err != nil {
		log.Printf("message reap failed: %v", err)
		return 0, err
	}
	if removed > 0 {
		m.emitter.Emit(ctx, "queue_reaped", nil, map[string]any{"removed": removed})
	}
	return removed, nil
}
