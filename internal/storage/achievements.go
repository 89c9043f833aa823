package storage

import (
	"context"
	"time"

	"supportbot/backend/internal/models"

	"gorm.io/gorm/clause"
)

// UpsertAchievements mirrors the in-code catalog into the achievements table.
func (s *Service) UpsertAchievements(ctx context.Context, rows []models.Achievement) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "icon", "type"}),
		}).
		Create(&rows).Error
}

// GrantAchievement inserts the grant unless the pair already exists and
// reports whether this call inserted it.
func (s *Service) GrantAchievement(ctx context.Context, userID int64, achievementID string, at time.Time) (bool, error) {
	res := s.db(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserAchievement{UserID: userID, AchievementID: achievementID, EarnedAt: at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) EarnedAchievements(ctx context.Context, userID int64) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	err := s.db(ctx).Where("user_id = ?", userID).Order("earned_at asc").Find(&rows).Error
	return rows, err
}
