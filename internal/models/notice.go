package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Notice kinds accepted by the queue.
const (
	NoticeKindSystem        = "system"
	NoticeKindFriendRequest = "friend_request"
	NoticeKindNotification  = "notification"
)

// ValidNoticeKind reports whether kind is one of the accepted notice kinds.
func ValidNoticeKind(kind string) bool {
	switch kind {
	case NoticeKindSystem, NoticeKindFriendRequest, NoticeKindNotification:
		return true
	}
	return false
}

// Metadata is an opaque key/value map stored as JSONB. Values are whatever
// JSON the producer attached, not just strings.
type Metadata map[string]any

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, m)
	case string:
		return json.Unmarshal([]byte(data), m)
	}
	return errors.New("unsupported metadata source type")
}

// SystemNotice is a self-contained in-band notification.
type SystemNotice struct {
	NoticeID  string    `db:"notice_id" json:"notice_id"`
	Kind      string    `db:"kind" json:"kind"`
	Content   string    `db:"content" json:"content"`
	Metadata  Metadata  `db:"metadata" json:"metadata"`
	AddedAt   time.Time `db:"added_at" json:"added_at"`
	Delivered bool      `db:"delivered" json:"delivered"`
}
