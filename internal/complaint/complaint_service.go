// Package complaint provides the complaint ledger: filing a complaint removes
// the item from the backlog, appends an audit record and, once a user
// accumulates enough complaints, blocks them exactly once.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"supportbot/backend/internal/config"
	"supportbot/backend/internal/models"
	"supportbot/backend/internal/storage"
)

// Outcome is the result of a successful complaint.
type Outcome struct {
	TargetID       int64 `json:"target_id"`
	ComplaintCount int64 `json:"complaint_count"`
	AutoBlocked    bool  `json:"auto_blocked"`
}

// Service handles the business logic for complaints.
type Service struct {
	Storage   storage.Storage
	threshold int64
	log       *slog.Logger
}

type Option func(*Service)

// WithThreshold overrides the auto-block threshold.
func WithThreshold(n int64) Option {
	return func(s *Service) { s.threshold = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a new complaint service.
func NewService(s storage.Storage, opts ...Option) *Service {
	svc := &Service{
		Storage:   s,
		threshold: config.AutoBlockThreshold,
		log:       slog.Default().With("component", "complaint"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// FileComplaint records a complaint about a queue item as one transaction.
// If the item is already gone it returns models.ErrNotFound and changes
// nothing. AutoBlocked is true only for the complaint that flipped the
// producer's block flag.
func (s *Service) FileComplaint(ctx context.Context, itemID uint, complainantID int64) (*Outcome, error) {
	var out Outcome
	err := s.Storage.WithTx(ctx, func(tx storage.Storage) error {
		item, err := tx.GetQueueItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.ProducerID == complainantID {
			return models.ErrOwnItem
		}

		// Serializes complaints against the same producer so the count
		// below sees every committed complaint.
		if _, err := tx.LockUser(ctx, item.ProducerID); err != nil {
			return fmt.Errorf("lock target %d: %w", item.ProducerID, err)
		}

		if err := tx.DeleteQueueItem(ctx, itemID); err != nil {
			return err
		}

		rec := &models.ComplaintRecord{
			TargetID:      item.ProducerID,
			ComplainantID: complainantID,
			ItemID:        item.ID,
			Category:      item.Category,
			Kind:          item.Kind,
			Text:          item.Text,
			FileID:        item.FileID,
		}
		if err := tx.AddComplaint(ctx, rec); err != nil {
			return fmt.Errorf("add complaint: %w", err)
		}

		count, err := tx.CountComplaints(ctx, item.ProducerID)
		if err != nil {
			return fmt.Errorf("count complaints: %w", err)
		}

		out = Outcome{TargetID: item.ProducerID, ComplaintCount: count}
		if count >= s.threshold {
			blocked, err := tx.BlockUser(ctx, item.ProducerID)
			if err != nil {
				return err
			}
			out.AutoBlocked = blocked
		}
		return nil
	})
	if errors.Is(err, models.ErrNotFound) {
		s.log.Debug("complaint target already handled", "item", itemID, "complainant", complainantID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	complaintsFiled.Inc()
	if out.AutoBlocked {
		s.Storage.CacheBan(ctx, out.TargetID, true)
		autoBlocks.Inc()
		s.log.Info("user auto-blocked", "user", out.TargetID, "complaints", out.ComplaintCount)
	}
	return &out, nil
}

// ListComplaints returns the newest complaints against a user.
func (s *Service) ListComplaints(ctx context.Context, targetID int64, limit int) ([]models.ComplaintRecord, error) {
	return s.Storage.ListComplaints(ctx, targetID, limit)
}

func (s *Service) CountComplaints(ctx context.Context, targetID int64) (int64, error) {
	return s.Storage.CountComplaints(ctx, targetID)
}
