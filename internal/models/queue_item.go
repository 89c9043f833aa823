package models

import (
	"strings"
	"time"
)

// Category partitions the backlog into the support pool and help requests.
type Category string

const (
	CategorySupport     Category = "support"
	CategoryHelpRequest Category = "help_request"
)

func (c Category) Valid() bool {
	return c == CategorySupport || c == CategoryHelpRequest
}

// MessageKind is the media type of a payload. Only text is ever inspected by
// the content filter.
type MessageKind string

const (
	KindText      MessageKind = "text"
	KindVoice     MessageKind = "voice"
	KindVideo     MessageKind = "video"
	KindVideoNote MessageKind = "video_note"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindVoice, KindVideo, KindVideoNote:
		return true
	}
	return false
}

// Payload is what a user submits: free text, or a Telegram file reference
// with an optional caption.
type Payload struct {
	Kind   MessageKind `json:"kind"`
	Text   string      `json:"text,omitempty"`
	FileID string      `json:"file_id,omitempty"`
}

// Validate checks that the payload carries content matching its kind.
func (p Payload) Validate() error {
	if !p.Kind.Valid() {
		return ErrInvalidPayload
	}
	if p.Kind == KindText {
		if strings.TrimSpace(p.Text) == "" {
			return ErrInvalidPayload
		}
		return nil
	}
	if p.FileID == "" {
		return ErrInvalidPayload
	}
	return nil
}

// QueueItem is a support message or a help request waiting in the backlog.
// IDs increase monotonically and are never reused; rotation depends on it.
type QueueItem struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	ProducerID int64       `gorm:"not null;index" json:"producer_id"`
	Category   Category    `gorm:"type:varchar(20);not null;index" json:"category"`
	Kind       MessageKind `gorm:"type:varchar(20);not null;default:text" json:"kind"`
	Text       string      `gorm:"type:text" json:"text,omitempty"`
	FileID     string      `gorm:"type:text" json:"file_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (q *QueueItem) Payload() Payload {
	return Payload{Kind: q.Kind, Text: q.Text, FileID: q.FileID}
}

// Delivery records that a support message was shown to a consumer, so the
// random sampler never serves it to them twice.
type Delivery struct {
	ConsumerID  int64     `gorm:"primaryKey;autoIncrement:false"`
	ItemID      uint      `gorm:"primaryKey;autoIncrement:false;index"`
	DeliveredAt time.Time `gorm:"not null;index"`
}

// HelpRecord is written once per successfully answered help request and is
// the source of the "help given" count.
type HelpRecord struct {
	ID          uint  `gorm:"primaryKey"`
	HelperID    int64 `gorm:"not null;index"`
	RequesterID int64 `gorm:"not null"`
	ItemID      uint  `gorm:"not null"`
	CreatedAt   time.Time
}
