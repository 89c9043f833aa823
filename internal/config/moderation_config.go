package config

import "time"

const (
	// Complaints
	AutoBlockThreshold      = 5
	ComplaintThrottleLimit  = 30
	ComplaintThrottleWindow = time.Hour
	ComplaintThrottleSize   = 10_000

	// Content filter
	RateWindow                  = 60 * time.Second
	DefaultMaxMessagesPerMinute = 5
	SweepInterval               = 5 * time.Minute
	MaxDetailMatches            = 3

	// Rating
	HelpReward = 1

	// Queue
	DeliveryInsertRetries = 3

	// Leaderboard
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100

	// Ban cache
	BanCacheTTL  = 30 * time.Second
	BanCacheSize = 10_000
)

// Redis keys and channels.
const (
	BanKeyPrefix  = "ban:"
	HelpCursorKey = "help_cursor"
	NotifyChannel = "notify:events"
)

// RiskThresholds maps a moderator-facing risk level to the minimum number of
// complaints that puts a user in it. Checked from the top down.
var RiskThresholds = []struct {
	Level string
	Min   int64
}{
	{"critical", AutoBlockThreshold},
	{"high", 3},
	{"medium", 2},
	{"low", 0},
}
