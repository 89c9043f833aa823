package storage

import (
	"context"
	"errors"
	"time"

	"supportbot/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Service) CreateQueueItem(ctx context.Context, item *models.QueueItem) error {
	return s.db(ctx).Create(item).Error
}

func (s *Service) GetQueueItem(ctx context.Context, id uint) (*models.QueueItem, error) {
	var item models.QueueItem
	err := s.db(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteQueueItem is the compare-and-set that makes answering and complaining
// mutually exclusive: whoever deletes the row wins, everyone else gets
// ErrNotFound.
func (s *Service) DeleteQueueItem(ctx context.Context, id uint) error {
	res := s.db(ctx).Where("id = ?", id).Delete(&models.QueueItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Service) CountQueueItems(ctx context.Context, producerID int64, category models.Category) (int64, error) {
	var n int64
	err := s.db(ctx).Model(&models.QueueItem{}).
		Where("producer_id = ? AND category = ?", producerID, category).
		Count(&n).Error
	return n, err
}

// FirstHelpRequestAfter returns the help request with the smallest id greater
// than afterID that was not written by the consumer, or nil.
func (s *Service) FirstHelpRequestAfter(ctx context.Context, consumerID int64, afterID uint) (*models.QueueItem, error) {
	var item models.QueueItem
	err := s.db(ctx).
		Where("category = ? AND producer_id <> ? AND id > ?", models.CategoryHelpRequest, consumerID, afterID).
		Order("id asc").
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RandomUndeliveredSupport picks a support message uniformly at random among
// those not written by the consumer and never delivered to them, or nil.
func (s *Service) RandomUndeliveredSupport(ctx context.Context, consumerID int64) (*models.QueueItem, error) {
	db := s.db(ctx)
	delivered := db.Model(&models.Delivery{}).Select("item_id").Where("consumer_id = ?", consumerID)

	var item models.QueueItem
	err := db.
		Where("category = ? AND producer_id <> ?", models.CategorySupport, consumerID).
		Where("id NOT IN (?)", delivered).
		Order("RANDOM()").
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RecordDelivery inserts the (consumer, item) pair and reports whether the
// row is new.
func (s *Service) RecordDelivery(ctx context.Context, consumerID int64, itemID uint) (bool, error) {
	res := s.db(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Delivery{ConsumerID: consumerID, ItemID: itemID, DeliveredAt: time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// PruneDeliveries removes delivery history older than the cutoff. Pruned
// messages may be served to the same consumer again.
func (s *Service) PruneDeliveries(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db(ctx).Where("delivered_at < ?", olderThan).Delete(&models.Delivery{})
	return res.RowsAffected, res.Error
}

func (s *Service) AddHelpRecord(ctx context.Context, rec *models.HelpRecord) error {
	return s.db(ctx).Create(rec).Error
}

func (s *Service) CountHelpGiven(ctx context.Context, helperID int64) (int64, error) {
	var n int64
	err := s.db(ctx).Model(&models.HelpRecord{}).Where("helper_id = ?", helperID).Count(&n).Error
	return n, err
}
