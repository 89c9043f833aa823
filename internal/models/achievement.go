package models

import "time"

// Achievement is a catalog row. The catalog itself lives in code; this table
// only mirrors it so moderators can join on it.
type Achievement struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Type        string `gorm:"type:varchar(32)" json:"type"`
}

// UserAchievement is a grant. The composite primary key keeps grants unique
// per (user, achievement).
type UserAchievement struct {
	UserID        int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	AchievementID string    `gorm:"primaryKey;type:varchar(64)" json:"achievement_id"`
	EarnedAt      time.Time `gorm:"not null" json:"earned_at"`
}

// LeaderboardEntry is one row of the rating table.
type LeaderboardEntry struct {
	Rank     int64  `json:"rank"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Rating   int    `json:"rating"`
}

// All returns every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&QueueItem{},
		&Delivery{},
		&HelpRecord{},
		&ComplaintRecord{},
		&Achievement{},
		&UserAchievement{},
	}
}
