// Package achievement grants badges in response to domain events. Grants are
// idempotent: each (user, achievement) pair is stored at most once and only
// freshly inserted grants are reported back.
package achievement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"supportbot/backend/internal/models"
)

// Stats is the read-mostly view of the store the evaluator needs.
// storage.Storage satisfies it.
type Stats interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CountHelpGiven(ctx context.Context, helperID int64) (int64, error)
	CountQueueItems(ctx context.Context, producerID int64, category models.Category) (int64, error)
	CountComplaints(ctx context.Context, targetID int64) (int64, error)
	CountHigherRated(ctx context.Context, rating int) (int64, error)
	EarnedAchievements(ctx context.Context, userID int64) ([]models.UserAchievement, error)
	GrantAchievement(ctx context.Context, userID int64, achievementID string, at time.Time) (bool, error)
	UpsertAchievements(ctx context.Context, rows []models.Achievement) error
}

// Earned is a granted achievement with its timestamp.
type Earned struct {
	Achievement
	EarnedAt time.Time `json:"earned_at"`
}

type Evaluator struct {
	stats   Stats
	catalog Catalog
	now     func() time.Time
	log     *slog.Logger
}

func NewEvaluator(stats Stats, catalog Catalog) *Evaluator {
	return &Evaluator{
		stats:   stats,
		catalog: catalog,
		now:     time.Now,
		log:     slog.Default().With("component", "achievement"),
	}
}

func (e *Evaluator) Catalog() Catalog { return e.catalog }

// SeedCatalog mirrors the catalog into the achievements table.
func (e *Evaluator) SeedCatalog(ctx context.Context) error {
	return e.stats.UpsertAchievements(ctx, e.catalog.Rows())
}

// Evaluate grants every not-yet-earned achievement whose condition matches
// the trigger and is met. A failing condition counts as not met and does not
// stop the pass.
func (e *Evaluator) Evaluate(ctx context.Context, userID int64, trigger Action) ([]Achievement, error) {
	return e.evaluate(ctx, userID, trigger, true)
}

// Preview reports what Evaluate would grant without writing anything.
func (e *Evaluator) Preview(ctx context.Context, userID int64, trigger Action) ([]Achievement, error) {
	return e.evaluate(ctx, userID, trigger, false)
}

func (e *Evaluator) evaluate(ctx context.Context, userID int64, trigger Action, persist bool) ([]Achievement, error) {
	rows, err := e.stats.EarnedAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load earned achievements: %w", err)
	}
	earned := make(map[string]bool, len(rows))
	for _, r := range rows {
		earned[r.AchievementID] = true
	}

	var granted []Achievement
	for _, a := range e.catalog {
		if earned[a.ID] {
			continue
		}
		if trigger != ActionAll && a.Condition.Action() != trigger {
			continue
		}

		met, err := e.check(ctx, userID, a.Condition)
		if err != nil {
			e.log.Warn("achievement condition failed", "user", userID, "achievement", a.ID, "err", err)
			continue
		}
		if !met {
			continue
		}

		if !persist {
			granted = append(granted, a)
			continue
		}

		inserted, err := e.stats.GrantAchievement(ctx, userID, a.ID, e.now())
		if err != nil {
			e.log.Warn("failed to grant achievement", "user", userID, "achievement", a.ID, "err", err)
			continue
		}
		if inserted {
			grantsCounter.WithLabelValues(a.ID).Inc()
			e.log.Info("achievement granted", "user", userID, "achievement", a.ID)
			granted = append(granted, a)
		}
	}
	return granted, nil
}

var errUnknownCondition = errors.New("unknown achievement condition")

func (e *Evaluator) check(ctx context.Context, userID int64, cond Condition) (bool, error) {
	switch c := cond.(type) {
	case HelpGiven:
		n, err := e.stats.CountHelpGiven(ctx, userID)
		return n >= c.Count, err

	case RatingReached:
		user, err := e.stats.GetUser(ctx, userID)
		if err != nil {
			return false, err
		}
		return user.Rating >= c.Value, nil

	case MessagesSent:
		n, err := e.stats.CountQueueItems(ctx, userID, models.CategorySupport)
		return n >= c.Count, err

	case Registration:
		_, err := e.stats.GetUser(ctx, userID)
		if errors.Is(err, models.ErrUserNotFound) {
			return false, nil
		}
		return err == nil, err

	case NoComplaints:
		user, err := e.stats.GetUser(ctx, userID)
		if err != nil {
			return false, err
		}
		if user.Rating < c.Rating {
			return false, nil
		}
		n, err := e.stats.CountComplaints(ctx, userID)
		return n == 0, err

	case TopPosition:
		rank, err := e.Rank(ctx, userID)
		return rank > 0 && rank <= c.Position, err

	default:
		return false, fmt.Errorf("%w: %T", errUnknownCondition, cond)
	}
}

// Rank is one plus the number of non-blocked users with a strictly higher
// rating; tied users share a rank. Blocked users have no rank and get zero.
func (e *Evaluator) Rank(ctx context.Context, userID int64) (int64, error) {
	user, err := e.stats.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.IsBlocked {
		return 0, nil
	}
	higher, err := e.stats.CountHigherRated(ctx, user.Rating)
	if err != nil {
		return 0, err
	}
	return higher + 1, nil
}

// Earned lists the user's grants in the order they were earned. Grants for
// ids no longer in the catalog are skipped.
func (e *Evaluator) Earned(ctx context.Context, userID int64) ([]Earned, error) {
	rows, err := e.stats.EarnedAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Earned, 0, len(rows))
	for _, r := range rows {
		a, ok := e.catalog.Lookup(r.AchievementID)
		if !ok {
			continue
		}
		out = append(out, Earned{Achievement: a, EarnedAt: r.EarnedAt})
	}
	return out, nil
}
