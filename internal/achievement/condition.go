package achievement

// Action tags the domain event a condition reacts to.
type Action string

const (
	ActionHelpGiven     Action = "help_given"
	ActionRatingReached Action = "rating_reached"
	ActionMessagesSent  Action = "messages_sent"
	ActionRegistration  Action = "registration"
	ActionNoComplaints  Action = "no_complaints"
	ActionTopPosition   Action = "top_position"

	// ActionAll evaluates every condition regardless of its tag.
	ActionAll Action = "all"
)

// ParseAction validates an action name coming from outside.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionHelpGiven, ActionRatingReached, ActionMessagesSent,
		ActionRegistration, ActionNoComplaints, ActionTopPosition, ActionAll:
		return a, true
	}
	return "", false
}

// Condition is a closed set of grant rules. Only types in this package can
// implement it.
type Condition interface {
	Action() Action
	sealed()
}

// HelpGiven is met once the user has answered at least Count help requests.
type HelpGiven struct{ Count int64 }

// RatingReached is met once the user's rating is at least Value.
type RatingReached struct{ Value int }

// MessagesSent is met once the user has at least Count support messages in
// the pool.
type MessagesSent struct{ Count int64 }

// Registration is met by any registered user.
type Registration struct{}

// NoComplaints is met by users with at least Rating and no complaints ever.
type NoComplaints struct{ Rating int }

// TopPosition is met when the user's leaderboard rank is Position or better.
type TopPosition struct{ Position int64 }

func (HelpGiven) Action() Action     { return ActionHelpGiven }
func (RatingReached) Action() Action { return ActionRatingReached }
func (MessagesSent) Action() Action  { return ActionMessagesSent }
func (Registration) Action() Action  { return ActionRegistration }
func (NoComplaints) Action() Action  { return ActionNoComplaints }
func (TopPosition) Action() Action   { return ActionTopPosition }

func (HelpGiven) sealed()     {}
func (RatingReached) sealed() {}
func (MessagesSent) sealed()  {}
func (Registration) sealed()  {}
func (NoComplaints) sealed()  {}
func (TopPosition) sealed()   {}
