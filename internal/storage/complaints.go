package storage

import (
	"context"

	"supportbot/backend/internal/models"
)

func (s *Service) AddComplaint(ctx context.Context, rec *models.ComplaintRecord) error {
	return s.db(ctx).Create(rec).Error
}

// CountComplaints is the sole input to the auto-block decision.
func (s *Service) CountComplaints(ctx context.Context, targetID int64) (int64, error) {
	var n int64
	err := s.db(ctx).Model(&models.ComplaintRecord{}).Where("target_id = ?", targetID).Count(&n).Error
	return n, err
}

// ListComplaints returns the newest complaints against a user first.
func (s *Service) ListComplaints(ctx context.Context, targetID int64, limit int) ([]models.ComplaintRecord, error) {
	var recs []models.ComplaintRecord
	err := s.db(ctx).
		Where("target_id = ?", targetID).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ComplaintSummaries aggregates complaints per target, most complained-about
// first.
func (s *Service) ComplaintSummaries(ctx context.Context, limit int) ([]models.ComplaintSummary, error) {
	var rows []models.ComplaintSummary
	err := s.db(ctx).
		Table("complaint_records AS c").
		Select("c.target_id AS user_id, u.nickname AS nickname, u.is_blocked AS is_blocked, COUNT(c.id) AS complaint_count").
		Joins("JOIN users u ON u.id = c.target_id").
		Group("c.target_id, u.nickname, u.is_blocked").
		Order("complaint_count desc").
		Order("c.target_id asc").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
