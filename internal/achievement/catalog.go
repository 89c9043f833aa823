package achievement

import "supportbot/backend/internal/models"

// Achievement is a catalog entry.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Type        string    `json:"type"`
	Condition   Condition `json:"-"`
}

// Catalog is evaluated in order.
type Catalog []Achievement

// DefaultCatalog returns the built-in achievements.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "first_help_1", Name: "First Aid", Description: "Helped someone for the first time", Icon: "🆘", Type: "first_help", Condition: HelpGiven{Count: 1}},

		{ID: "rating_10", Name: "Bronze Helper", Description: "Reached a rating of 10", Icon: "🥉", Type: "rating_milestone", Condition: RatingReached{Value: 10}},
		{ID: "rating_50", Name: "Silver Helper", Description: "Reached a rating of 50", Icon: "🥈", Type: "rating_milestone", Condition: RatingReached{Value: 50}},
		{ID: "rating_100", Name: "Gold Helper", Description: "Reached a rating of 100", Icon: "🥇", Type: "rating_milestone", Condition: RatingReached{Value: 100}},
		{ID: "rating_500", Name: "Diamond Helper", Description: "Reached a rating of 500", Icon: "💎", Type: "rating_milestone", Condition: RatingReached{Value: 500}},
		{ID: "rating_1000", Name: "King of Kindness", Description: "Reached a rating of 1000", Icon: "👑", Type: "rating_milestone", Condition: RatingReached{Value: 1000}},

		{ID: "messages_10", Name: "Sociable", Description: "Sent 10 support messages", Icon: "💬", Type: "messages_sent", Condition: MessagesSent{Count: 10}},
		{ID: "messages_50", Name: "Voice of Support", Description: "Sent 50 support messages", Icon: "📢", Type: "messages_sent", Condition: MessagesSent{Count: 50}},
		{ID: "messages_100", Name: "Megaphone of Good", Description: "Sent 100 support messages", Icon: "📣", Type: "messages_sent", Condition: MessagesSent{Count: 100}},
		{ID: "messages_500", Name: "Support Radio", Description: "Sent 500 support messages", Icon: "📡", Type: "messages_sent", Condition: MessagesSent{Count: 500}},

		{ID: "first_day", Name: "Welcome!", Description: "Registered in the community", Icon: "🎉", Type: "special", Condition: Registration{}},
		{ID: "perfect_reputation", Name: "Perfect Reputation", Description: "Never received a complaint", Icon: "✨", Type: "special", Condition: NoComplaints{Rating: 50}},
		{ID: "top_1", Name: "Champion", Description: "Took first place on the leaderboard", Icon: "🏆", Type: "special", Condition: TopPosition{Position: 1}},
		{ID: "helper_1000", Name: "Master Helper", Description: "Helped 1000 people", Icon: "🎖️", Type: "special", Condition: HelpGiven{Count: 1000}},
	}
}

// Lookup finds an entry by id.
func (c Catalog) Lookup(id string) (Achievement, bool) {
	for _, a := range c {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Rows converts the catalog into table rows.
func (c Catalog) Rows() []models.Achievement {
	rows := make([]models.Achievement, len(c))
	for i, a := range c {
		rows[i] = models.Achievement{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Icon:        a.Icon,
			Type:        a.Type,
		}
	}
	return rows
}
