package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"supportbot/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LockUser loads the user row with FOR UPDATE so concurrent transactions on
// the same user serialize. SQLite ignores the clause, but it only ever has
// one writer anyway.
func (s *Service) LockUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUserByNickname(ctx context.Context, nickname string) (*models.User, error) {
	var user models.User
	err := s.db(ctx).Where("nickname = ?", nickname).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchUsers does a case-insensitive substring match on nicknames.
func (s *Service) SearchUsers(ctx context.Context, fragment string, limit int) ([]models.User, error) {
	var users []models.User
	pattern := "%" + strings.ToLower(fragment) + "%"
	err := s.db(ctx).
		Where("LOWER(nickname) LIKE ?", pattern).
		Order("id asc").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// CreateUser inserts a new user. A nickname or ID collision surfaces as
// ErrNicknameTaken.
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.ErrNicknameTaken
	}
	return err
}

func (s *Service) UpdateNickname(ctx context.Context, id int64, nickname string) error {
	res := s.db(ctx).Model(&models.User{}).Where("id = ?", id).Update("nickname", nickname)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return models.ErrNicknameTaken
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// IncrementRating adds delta to the user's rating in place and returns the
// new value.
func (s *Service) IncrementRating(ctx context.Context, id int64, delta int) (int, error) {
	res := s.db(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("rating", gorm.Expr("rating + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, models.ErrUserNotFound
	}

	var rating int
	if err := s.db(ctx).Model(&models.User{}).Where("id = ?", id).Pluck("rating", &rating).Error; err != nil {
		return 0, err
	}
	return rating, nil
}

// SetRating is the administrative override; it is the only way a rating
// decreases.
func (s *Service) SetRating(ctx context.Context, id int64, rating int) error {
	res := s.db(ctx).Model(&models.User{}).Where("id = ?", id).Update("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// BlockUser sets the block flag only if it is not set yet and reports whether
// this call made the transition.
func (s *Service) BlockUser(ctx context.Context, id int64) (bool, error) {
	return s.setBlocked(ctx, id, true)
}

// UnblockUser is the inverse of BlockUser.
func (s *Service) UnblockUser(ctx context.Context, id int64) (bool, error) {
	return s.setBlocked(ctx, id, false)
}

func (s *Service) setBlocked(ctx context.Context, id int64, blocked bool) (bool, error) {
	res := s.db(ctx).Model(&models.User{}).
		Where("id = ? AND is_blocked = ?", id, !blocked).
		Update("is_blocked", blocked)
	if res.Error != nil {
		return false, fmt.Errorf("set is_blocked=%t for %d: %w", blocked, id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) SetReminders(ctx context.Context, id int64, enabled bool) error {
	res := s.db(ctx).Model(&models.User{}).Where("id = ?", id).Update("reminders_enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// ReminderRecipients lists users who opted in and are not blocked.
func (s *Service) ReminderRecipients(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db(ctx).Model(&models.User{}).
		Where("reminders_enabled = ? AND is_blocked = ?", true, false).
		Order("id asc").
		Pluck("id", &ids).Error
	return ids, err
}

// CountHigherRated counts non-blocked users with a strictly higher rating.
func (s *Service) CountHigherRated(ctx context.Context, rating int) (int64, error) {
	var n int64
	err := s.db(ctx).Model(&models.User{}).
		Where("rating > ? AND is_blocked = ?", rating, false).
		Count(&n).Error
	return n, err
}

// Leaderboard returns the top non-blocked users by rating, ties broken by
// user id. Tied users share a rank.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var users []models.User
	err := s.db(ctx).
		Where("is_blocked = ?", false).
		Order("rating desc").
		Order("id asc").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		rank := int64(i + 1)
		if i > 0 && u.Rating == users[i-1].Rating {
			rank = entries[i-1].Rank
		}
		entries = append(entries, models.LeaderboardEntry{
			Rank:     rank,
			UserID:   u.ID,
			Nickname: u.Nickname,
			Rating:   u.Rating,
		})
	}
	return entries, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	db := s.db(ctx)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&st.Users, db.Model(&models.User{})},
		{&st.BlockedUsers, db.Model(&models.User{}).Where("is_blocked = ?", true)},
		{&st.SupportMessages, db.Model(&models.QueueItem{}).Where("category = ?", models.CategorySupport)},
		{&st.HelpRequests, db.Model(&models.QueueItem{}).Where("category = ?", models.CategoryHelpRequest)},
		{&st.Complaints, db.Model(&models.ComplaintRecord{})},
		{&st.HelpGiven, db.Model(&models.HelpRecord{})},
		{&st.Grants, db.Model(&models.UserAchievement{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	return &st, nil
}
