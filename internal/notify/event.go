package notify

import "supportbot/backend/internal/models"

// Kind is the type of a notification.
type Kind string

const (
	KindHelpAnswered Kind = "help_answered"
	KindUserBlocked  Kind = "user_blocked"
	KindAchievement  Kind = "achievement"
	KindSystemInfo   Kind = "system_info"
)

// Event is a notification addressed to one user. For help_answered events
// MediaKind and FileID carry the reply when it is not plain text.
type Event struct {
	UserID        int64              `json:"user_id"`
	Kind          Kind               `json:"kind"`
	Text          string             `json:"text,omitempty"`
	FileID        string             `json:"file_id,omitempty"`
	MediaKind     models.MessageKind `json:"media_kind,omitempty"`
	AchievementID string             `json:"achievement_id,omitempty"`
}
