// Package queue serves backlog items to consumers. Support messages are
// sampled at random without repeats; help requests rotate in id order with
// wraparound so every consumer eventually sees every request.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"supportbot/backend/internal/config"
	"supportbot/backend/internal/models"
	"supportbot/backend/internal/storage"
)

type Service struct {
	Storage storage.Storage
	Cursors CursorStore
	log     *slog.Logger
}

func NewService(s storage.Storage, cursors CursorStore) *Service {
	return &Service{
		Storage: s,
		Cursors: cursors,
		log:     slog.Default().With("component", "queue"),
	}
}

// NextSupportMessage returns a random support message the consumer did not
// write and has never been shown, and records the delivery. It returns nil
// when nothing is left.
func (s *Service) NextSupportMessage(ctx context.Context, consumerID int64) (*models.QueueItem, error) {
	for attempt := 0; attempt < config.DeliveryInsertRetries; attempt++ {
		item, err := s.Storage.RandomUndeliveredSupport(ctx, consumerID)
		if err != nil {
			return nil, fmt.Errorf("sample support message: %w", err)
		}
		if item == nil {
			return nil, nil
		}

		inserted, err := s.Storage.RecordDelivery(ctx, consumerID, item.ID)
		if err != nil {
			return nil, fmt.Errorf("record delivery: %w", err)
		}
		if inserted {
			return item, nil
		}
		// a concurrent call for the same consumer took this item first
		s.log.Debug("delivery already recorded, resampling", "consumer", consumerID, "item", item.ID)
	}
	return nil, nil
}

// NextHelpRequest returns the first request after lastSeenID that the
// consumer did not write, wrapping to the oldest one when the end of the
// backlog is reached, and stores it as the consumer's cursor. It returns nil
// when the backlog holds nothing but the consumer's own requests.
func (s *Service) NextHelpRequest(ctx context.Context, consumerID int64, lastSeenID uint) (*models.QueueItem, error) {
	item, err := s.Storage.FirstHelpRequestAfter(ctx, consumerID, lastSeenID)
	if err != nil {
		return nil, fmt.Errorf("scan help requests: %w", err)
	}
	if item == nil && lastSeenID > 0 {
		item, err = s.Storage.FirstHelpRequestAfter(ctx, consumerID, 0)
		if err != nil {
			return nil, fmt.Errorf("wrap help requests: %w", err)
		}
	}
	if item == nil {
		return nil, nil
	}

	if err := s.Cursors.Set(ctx, consumerID, item.ID); err != nil {
		return nil, fmt.Errorf("store cursor: %w", err)
	}
	return item, nil
}

// Next continues the consumer's rotation from the stored cursor.
func (s *Service) Next(ctx context.Context, consumerID int64) (*models.QueueItem, error) {
	cursor, err := s.Cursors.Get(ctx, consumerID)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	return s.NextHelpRequest(ctx, consumerID, cursor)
}

// PruneDeliveries forgets deliveries older than the given age.
func (s *Service) PruneDeliveries(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.Storage.PruneDeliveries(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	s.log.Info("pruned delivery history", "rows", n, "older_than", olderThan)
	return n, nil
}
