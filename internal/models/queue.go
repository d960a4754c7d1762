package models

import "time"

// Queue is the per-user inbox of pending deliveries.
type Queue struct {
	UserID         int64          `db:"user_id" json:"user_id"`
	Messages       []MessageRef   `json:"messages"`
	SystemMessages []SystemNotice `json:"system_messages"`
	LastPolledAt   *time.Time     `db:"last_polled_at" json:"last_polled_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// MessageRef points at an externally stored chat message awaiting delivery.
type MessageRef struct {
	MessageID int64     `db:"message_id" json:"message_id"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
	Delivered bool      `db:"delivered" json:"delivered"`
}

// SenderInfo is the resolved projection of the message author.
type SenderInfo struct {
	Username string `db:"sender_username" json:"username"`
	Avatar   string `db:"sender_avatar" json:"avatar"`
	Status   string `db:"sender_status" json:"status"`
}

// GroupInfo is the resolved projection of the group a message was sent in.
type GroupInfo struct {
	Name   string `db:"group_name" json:"name"`
	Avatar string `db:"group_avatar" json:"avatar"`
}

// DeliveredMessage is a message ref with its body and sender resolved,
// as returned to polling clients.
type DeliveredMessage struct {
	MessageID int64      `db:"message_id" json:"message_id"`
	Content   string     `db:"content" json:"content"`
	SenderID  int64      `db:"sender_id" json:"sender_id"`
	Sender    SenderInfo `json:"sender"`
	Group     *GroupInfo `json:"group,omitempty"`
	AddedAt   time.Time  `db:"added_at" json:"added_at"`
}
