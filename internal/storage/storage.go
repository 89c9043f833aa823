package storage

import (
	"context"
	"time"

	"supportbot/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistence surface of the core. Every method is a single
// statement; multi-step mutations go through WithTx so they commit or roll
// back as a unit.
type Storage interface {
	WithTx(ctx context.Context, fn func(tx Storage) error) error

	// Users
	GetUser(ctx context.Context, id int64) (*models.User, error)
	LockUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*models.User, error)
	SearchUsers(ctx context.Context, fragment string, limit int) ([]models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateNickname(ctx context.Context, id int64, nickname string) error
	IncrementRating(ctx context.Context, id int64, delta int) (int, error)
	SetRating(ctx context.Context, id int64, rating int) error
	BlockUser(ctx context.Context, id int64) (bool, error)
	UnblockUser(ctx context.Context, id int64) (bool, error)
	SetReminders(ctx context.Context, id int64, enabled bool) error
	ReminderRecipients(ctx context.Context) ([]int64, error)
	CountHigherRated(ctx context.Context, rating int) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)

	// Ban cache
	IsUserBlocked(ctx context.Context, id int64) (bool, error)
	CacheBan(ctx context.Context, id int64, blocked bool)

	// Queue
	CreateQueueItem(ctx context.Context, item *models.QueueItem) error
	GetQueueItem(ctx context.Context, id uint) (*models.QueueItem, error)
	DeleteQueueItem(ctx context.Context, id uint) error
	CountQueueItems(ctx context.Context, producerID int64, category models.Category) (int64, error)
	FirstHelpRequestAfter(ctx context.Context, consumerID int64, afterID uint) (*models.QueueItem, error)
	RandomUndeliveredSupport(ctx context.Context, consumerID int64) (*models.QueueItem, error)
	RecordDelivery(ctx context.Context, consumerID int64, itemID uint) (bool, error)
	PruneDeliveries(ctx context.Context, olderThan time.Time) (int64, error)

	// Help records
	AddHelpRecord(ctx context.Context, rec *models.HelpRecord) error
	CountHelpGiven(ctx context.Context, helperID int64) (int64, error)

	// Complaints
	AddComplaint(ctx context.Context, rec *models.ComplaintRecord) error
	CountComplaints(ctx context.Context, targetID int64) (int64, error)
	ListComplaints(ctx context.Context, targetID int64, limit int) ([]models.ComplaintRecord, error)
	ComplaintSummaries(ctx context.Context, limit int) ([]models.ComplaintSummary, error)

	// Achievements
	UpsertAchievements(ctx context.Context, rows []models.Achievement) error
	GrantAchievement(ctx context.Context, userID int64, achievementID string, at time.Time) (bool, error)
	EarnedAchievements(ctx context.Context, userID int64) ([]models.UserAchievement, error)

	Stats(ctx context.Context) (*Stats, error)
}

// Stats is the moderator overview.
type Stats struct {
	Users           int64 `json:"users"`
	BlockedUsers    int64 `json:"blocked_users"`
	SupportMessages int64 `json:"support_messages"`
	HelpRequests    int64 `json:"help_requests"`
	Complaints      int64 `json:"complaints"`
	HelpGiven       int64 `json:"help_given"`
	Grants          int64 `json:"grants"`
}

// Service implements Storage on gorm with an optional Redis client. Redis
// backs the ban cache when present; otherwise an in-process expiring LRU is
// used.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client

	bans *banCache
	inTx bool
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		bans:  newLocalBanCache(),
	}
}

func (s *Service) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

// WithTx runs fn inside a database transaction. Only the Storage passed to fn
// may be used until it returns.
func (s *Service) WithTx(ctx context.Context, fn func(tx Storage) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Redis: s.Redis, bans: s.bans, inTx: true})
	})
}

var _ Storage = (*Service)(nil)
