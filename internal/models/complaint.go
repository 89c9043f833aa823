package models

import "time"

// ComplaintRecord is an append-only audit row. The payload is copied from the
// queue item because the item itself is deleted when the complaint lands.
type ComplaintRecord struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	TargetID      int64       `gorm:"not null;index" json:"target_id"`
	ComplainantID int64       `gorm:"not null;index" json:"complainant_id"`
	ItemID        uint        `gorm:"not null" json:"item_id"`
	Category      Category    `gorm:"type:varchar(20);not null" json:"category"`
	Kind          MessageKind `gorm:"type:varchar(20);not null" json:"kind"`
	Text          string      `gorm:"type:text" json:"text,omitempty"`
	FileID        string      `gorm:"type:text" json:"file_id,omitempty"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
}

// ComplaintSummary is a per-user aggregate used by moderators.
type ComplaintSummary struct {
	UserID         int64
	Nickname       string
	IsBlocked      bool
	ComplaintCount int64
}
