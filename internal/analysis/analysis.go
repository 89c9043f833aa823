// Package analysis grades users by their complaint history for moderators.
package analysis

import (
	"supportbot/backend/internal/config"
	"supportbot/backend/internal/models"
)

// RiskLevel returns the moderator-facing risk level for a complaint count.
func RiskLevel(complaints int64) string {
	for _, t := range config.RiskThresholds {
		if complaints >= t.Min {
			return t.Level
		}
	}
	return "low"
}

// Assessment is a complaint summary with its risk level.
type Assessment struct {
	models.ComplaintSummary
	Risk string `json:"risk"`
}

// Assess attaches risk levels to complaint summaries, preserving order.
func Assess(sums []models.ComplaintSummary) []Assessment {
	out := make([]Assessment, len(sums))
	for i, s := range sums {
		out[i] = Assessment{ComplaintSummary: s, Risk: RiskLevel(s.ComplaintCount)}
	}
	return out
}
