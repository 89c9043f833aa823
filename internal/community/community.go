// Package community is the API surface the chat transport and the Mini App
// call. It composes the filter, the complaint ledger, queue rotation and the
// achievement evaluator, and turns their results into notifications.
package community

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"supportbot/backend/internal/achievement"
	"supportbot/backend/internal/complaint"
	"supportbot/backend/internal/config"
	"supportbot/backend/internal/filter"
	"supportbot/backend/internal/models"
	"supportbot/backend/internal/notify"
	"supportbot/backend/internal/queue"
	"supportbot/backend/internal/storage"
)

// Notifier delivers events to users. *notify.Hub satisfies it.
type Notifier interface {
	Publish(ctx context.Context, ev notify.Event) error
}

type Service struct {
	Storage      storage.Storage
	Filter       *filter.Filter
	Complaints   *complaint.Service
	Queue        *queue.Service
	Achievements *achievement.Evaluator
	Notifier     Notifier

	log *slog.Logger
}

// NewService wires the core components. notifier may be nil.
func NewService(
	s storage.Storage,
	f *filter.Filter,
	complaints *complaint.Service,
	q *queue.Service,
	achievements *achievement.Evaluator,
	notifier Notifier,
) *Service {
	return &Service{
		Storage:      s,
		Filter:       f,
		Complaints:   complaints,
		Queue:        q,
		Achievements: achievements,
		Notifier:     notifier,
		log:          slog.Default().With("component", "community"),
	}
}

// Submission is the outcome of SubmitQueueItem. A rejected submission is not
// an error; Verdict says why.
type Submission struct {
	Accepted     bool                      `json:"accepted"`
	ItemID       uint                      `json:"item_id,omitempty"`
	Verdict      *filter.Verdict           `json:"verdict,omitempty"`
	Achievements []achievement.Achievement `json:"achievements,omitempty"`
}

// Response is the outcome of RespondToHelpRequest.
type Response struct {
	Accepted     bool                      `json:"accepted"`
	Verdict      *filter.Verdict           `json:"verdict,omitempty"`
	Rating       int                       `json:"rating,omitempty"`
	Achievements []achievement.Achievement `json:"achievements,omitempty"`
}

// RegisterNickname claims a nickname for the user, creating the account on
// first use. Claiming the nickname one already holds is a no-op.
func (s *Service) RegisterNickname(ctx context.Context, userID int64, nickname string) (*models.User, error) {
	if userID == 0 {
		return nil, models.ErrInvalidUser
	}
	nick, err := models.NormalizeNickname(nickname)
	if err != nil {
		return nil, err
	}

	holder, err := s.Storage.GetUserByNickname(ctx, nick)
	switch {
	case err == nil && holder.ID == userID:
		return holder, nil
	case err == nil:
		return nil, models.ErrNicknameTaken
	case !errors.Is(err, models.ErrUserNotFound):
		return nil, fmt.Errorf("look up nickname: %w", err)
	}

	user, err := s.Storage.GetUser(ctx, userID)
	if errors.Is(err, models.ErrUserNotFound) {
		return s.createUser(ctx, userID, nick)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Storage.UpdateNickname(ctx, userID, nick); err != nil {
		return nil, err
	}
	user.Nickname = nick
	s.log.Info("nickname changed", "user", userID)
	return user, nil
}

func (s *Service) createUser(ctx context.Context, userID int64, nick string) (*models.User, error) {
	user := &models.User{ID: userID, Nickname: nick}
	if err := s.Storage.CreateUser(ctx, user); err != nil {
		// a concurrent registration of the same user with the same name
		// reports a collision even though the caller got what they asked for
		if errors.Is(err, models.ErrNicknameTaken) {
			if existing, gerr := s.Storage.GetUser(ctx, userID); gerr == nil && existing.Nickname == nick {
				return existing, nil
			}
		}
		return nil, err
	}
	s.log.Info("user registered", "user", userID)
	s.award(ctx, userID, achievement.ActionRegistration)
	return user, nil
}

// activeUser returns the user if they are registered and not blocked.
func (s *Service) activeUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.Storage.GetUser(ctx, userID)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	if user.IsBlocked {
		return nil, models.ErrUserBlocked
	}
	return user, nil
}

// gate rejects blocked users using the ban cache.
func (s *Service) gate(ctx context.Context, userID int64) error {
	blocked, err := s.Storage.IsUserBlocked(ctx, userID)
	if err != nil {
		return err
	}
	if blocked {
		return models.ErrUserBlocked
	}
	return nil
}

// SubmitQueueItem puts a support message or help request into the backlog
// after the content filter has passed it.
func (s *Service) SubmitQueueItem(ctx context.Context, producerID int64, payload models.Payload, category models.Category) (*Submission, error) {
	if !category.Valid() {
		return nil, models.ErrInvalidPayload
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.activeUser(ctx, producerID); err != nil {
		return nil, err
	}

	v, slot := s.Filter.Check(producerID, payload.Text, payload.Kind)
	if v.Blocked {
		return &Submission{Verdict: &v}, nil
	}
	defer slot.Cancel()

	item := &models.QueueItem{
		ProducerID: producerID,
		Category:   category,
		Kind:       payload.Kind,
		Text:       payload.Text,
		FileID:     payload.FileID,
	}
	if err := s.Storage.CreateQueueItem(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue item: %w", err)
	}
	slot.Commit()
	s.log.Debug("item enqueued", "item", item.ID, "producer", producerID, "category", category)

	out := &Submission{Accepted: true, ItemID: item.ID}
	if category == models.CategorySupport {
		out.Achievements = s.award(ctx, producerID, achievement.ActionMessagesSent)
	}
	return out, nil
}

// NextSupportMessage returns an unseen support message or nil.
func (s *Service) NextSupportMessage(ctx context.Context, consumerID int64) (*models.QueueItem, error) {
	if err := s.gate(ctx, consumerID); err != nil {
		return nil, err
	}
	return s.Queue.NextSupportMessage(ctx, consumerID)
}

// NextHelpRequest continues the consumer's rotation. With a nil cursor the
// server-side cursor is used.
func (s *Service) NextHelpRequest(ctx context.Context, consumerID int64, cursor *uint) (*models.QueueItem, error) {
	if err := s.gate(ctx, consumerID); err != nil {
		return nil, err
	}
	if cursor == nil {
		return s.Queue.Next(ctx, consumerID)
	}
	return s.Queue.NextHelpRequest(ctx, consumerID, *cursor)
}

// ResolveHelpRequest lets the author withdraw a help request. It returns the
// deleted item, or models.ErrNotFound if it is already gone.
func (s *Service) ResolveHelpRequest(ctx context.Context, itemID uint, producerID int64) (*models.QueueItem, error) {
	var item *models.QueueItem
	err := s.Storage.WithTx(ctx, func(tx storage.Storage) error {
		var err error
		item, err = tx.GetQueueItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Category != models.CategoryHelpRequest {
			return models.ErrNotFound
		}
		if item.ProducerID != producerID {
			return models.ErrNotOwner
		}
		return tx.DeleteQueueItem(ctx, itemID)
	})
	if errors.Is(err, models.ErrNotFound) {
		s.log.Debug("help request already handled", "item", itemID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// RespondToHelpRequest answers a help request. Deleting the request,
// rewarding the responder and recording the help happen in one transaction;
// delivering the reply happens after commit and may be lost.
func (s *Service) RespondToHelpRequest(ctx context.Context, itemID uint, responderID int64, payload models.Payload) (*Response, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.activeUser(ctx, responderID); err != nil {
		return nil, err
	}

	// the reply only counts against the rate limit once the request is
	// actually answered
	v, slot := s.Filter.Check(responderID, payload.Text, payload.Kind)
	if v.Blocked {
		return &Response{Verdict: &v}, nil
	}
	defer slot.Cancel()

	var (
		item   *models.QueueItem
		rating int
	)
	err := s.Storage.WithTx(ctx, func(tx storage.Storage) error {
		var err error
		item, err = tx.GetQueueItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Category != models.CategoryHelpRequest {
			return models.ErrNotFound
		}
		if item.ProducerID == responderID {
			return models.ErrOwnItem
		}
		if err := tx.DeleteQueueItem(ctx, itemID); err != nil {
			return err
		}
		if rating, err = tx.IncrementRating(ctx, responderID, config.HelpReward); err != nil {
			return fmt.Errorf("reward responder: %w", err)
		}
		return tx.AddHelpRecord(ctx, &models.HelpRecord{
			HelperID:    responderID,
			RequesterID: item.ProducerID,
			ItemID:      itemID,
		})
	})
	if errors.Is(err, models.ErrNotFound) {
		s.log.Debug("help request already handled", "item", itemID, "responder", responderID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	slot.Commit()
	helpCounter.Inc()

	s.notify(ctx, notify.Event{
		UserID:    item.ProducerID,
		Kind:      notify.KindHelpAnswered,
		Text:      payload.Text,
		FileID:    payload.FileID,
		MediaKind: payload.Kind,
	})

	return &Response{
		Accepted: true,
		Rating:   rating,
		Achievements: s.award(ctx, responderID,
			achievement.ActionHelpGiven,
			achievement.ActionRatingReached,
			achievement.ActionNoComplaints,
			achievement.ActionTopPosition,
		),
	}, nil
}

// FileComplaint files a complaint about an item. Only the complainant whose
// complaint blocked the author is told about the block.
func (s *Service) FileComplaint(ctx context.Context, itemID uint, complainantID int64) (*complaint.Outcome, error) {
	if err := s.gate(ctx, complainantID); err != nil {
		return nil, err
	}
	out, err := s.Complaints.FileComplaint(ctx, itemID, complainantID)
	if err != nil {
		return nil, err
	}
	if out.AutoBlocked {
		s.notify(ctx, notify.Event{UserID: complainantID, Kind: notify.KindUserBlocked})
	}
	return out, nil
}

// IncrementRating adds the help reward to the user's rating and re-evaluates
// rating achievements.
func (s *Service) IncrementRating(ctx context.Context, userID int64) (int, error) {
	rating, err := s.Storage.IncrementRating(ctx, userID, config.HelpReward)
	if err != nil {
		return 0, err
	}
	s.award(ctx, userID, achievement.ActionRatingReached, achievement.ActionNoComplaints, achievement.ActionTopPosition)
	return rating, nil
}

// EvaluateAchievements runs the evaluator for one trigger. With dryRun it
// only reports what would be granted.
func (s *Service) EvaluateAchievements(ctx context.Context, userID int64, action achievement.Action, dryRun bool) ([]achievement.Achievement, error) {
	if dryRun {
		return s.Achievements.Preview(ctx, userID, action)
	}
	granted, err := s.Achievements.Evaluate(ctx, userID, action)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, userID, granted)
	return granted, nil
}

// award evaluates each trigger and announces fresh grants. Failures degrade
// to no grant.
func (s *Service) award(ctx context.Context, userID int64, actions ...achievement.Action) []achievement.Achievement {
	var all []achievement.Achievement
	for _, a := range actions {
		granted, err := s.Achievements.Evaluate(ctx, userID, a)
		if err != nil {
			s.log.Warn("achievement evaluation failed", "user", userID, "action", a, "err", err)
			continue
		}
		all = append(all, granted...)
	}
	s.announce(ctx, userID, all)
	return all
}

func (s *Service) announce(ctx context.Context, userID int64, granted []achievement.Achievement) {
	for _, a := range granted {
		s.notify(ctx, notify.Event{
			UserID:        userID,
			Kind:          notify.KindAchievement,
			Text:          a.Icon + " " + a.Name,
			AchievementID: a.ID,
		})
	}
}

func (s *Service) notify(ctx context.Context, ev notify.Event) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Publish(ctx, ev); err != nil {
		lostNotifications.WithLabelValues(string(ev.Kind)).Inc()
		s.log.Warn("notification lost", "user", ev.UserID, "kind", ev.Kind, "err", err)
	}
}

// IsBlocked reports the user's block flag through the ban cache.
func (s *Service) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	return s.Storage.IsUserBlocked(ctx, userID)
}

func (s *Service) SetReminders(ctx context.Context, userID int64, enabled bool) error {
	return s.Storage.SetReminders(ctx, userID, enabled)
}

// ReminderRecipients lists users who opted in to reminders and are not
// blocked.
func (s *Service) ReminderRecipients(ctx context.Context) ([]int64, error) {
	return s.Storage.ReminderRecipients(ctx)
}

// Leaderboard returns the top users by rating. Limits outside
// (0, MaxLeaderboardLimit] fall back to the default or the maximum.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	switch {
	case limit <= 0:
		limit = config.DefaultLeaderboardLimit
	case limit > config.MaxLeaderboardLimit:
		limit = config.MaxLeaderboardLimit
	}
	return s.Storage.Leaderboard(ctx, limit)
}
