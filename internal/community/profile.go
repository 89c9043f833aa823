package community

import (
	"context"

	"supportbot/backend/internal/achievement"
	"supportbot/backend/internal/models"
)

// Profile is what a user sees about themselves.
type Profile struct {
	User            *models.User         `json:"user"`
	Rank            int64                `json:"rank"`
	HelpGiven       int64                `json:"help_given"`
	SupportMessages int64                `json:"support_messages"`
	Complaints      int64                `json:"complaints"`
	Achievements    []achievement.Earned `json:"achievements"`
}

func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.Storage.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: user}

	if p.Rank, err = s.Achievements.Rank(ctx, userID); err != nil {
		return nil, err
	}
	if p.HelpGiven, err = s.Storage.CountHelpGiven(ctx, userID); err != nil {
		return nil, err
	}
	if p.SupportMessages, err = s.Storage.CountQueueItems(ctx, userID, models.CategorySupport); err != nil {
		return nil, err
	}
	if p.Complaints, err = s.Storage.CountComplaints(ctx, userID); err != nil {
		return nil, err
	}
	if p.Achievements, err = s.Achievements.Earned(ctx, userID); err != nil {
		return nil, err
	}
	return p, nil
}
