// Package scoring applies the qualification merge and scoring policy to a Lead.
package scoring

import (
	"time"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

const (
	PointsPainPoint     = 10
	PointsInterest      = 15
	PointsBudget        = 20
	PointsTimeline      = 15
	PointsDecisionMaker = 25
	PointsBonus         = 10

	// BonusConditions is how many conditions must hold in one turn to earn the bonus.
	BonusConditions = 3

	MaxScore = 100

	QualifiedThreshold = 80
	NurturingThreshold = 50
)

// Conditions are the scoring triggers of one turn.
type Conditions struct {
	NewPainPoint     bool
	NewInterest      bool
	BudgetNew        bool
	TimelineNew      bool
	DecisionMakerNew bool
}

func (c Conditions) Count() int {
	n := 0
	for _, b := range []bool{c.NewPainPoint, c.NewInterest, c.BudgetNew, c.TimelineNew, c.DecisionMakerNew} {
		if b {
			n++
		}
	}
	return n
}

// Increment is the raw, unclamped score gain for c.
func Increment(c Conditions) int {
	inc := 0
	if c.NewPainPoint {
		inc += PointsPainPoint
	}
	if c.NewInterest {
		inc += PointsInterest
	}
	if c.BudgetNew {
		inc += PointsBudget
	}
	if c.TimelineNew {
		inc += PointsTimeline
	}
	if c.DecisionMakerNew {
		inc += PointsDecisionMaker
	}
	if c.Count() >= BonusConditions {
		inc += PointsBonus
	}
	return inc
}

// StatusFor maps a score to its lead status.
func StatusFor(score int) model.LeadStatus {
	switch {
	case score >= QualifiedThreshold:
		return model.LeadStatusQualified
	case score >= NurturingThreshold:
		return model.LeadStatusNurturing
	default:
		return model.LeadStatusProspect
	}
}

// Add applies inc to prev, clamped to [0, MaxScore] and never below prev.
func Add(prev, inc int) int {
	next := prev
	if inc > 0 {
		next = prev + inc
	}
	if next > MaxScore {
		next = MaxScore
	}
	if next < prev {
		next = prev
	}
	if next < 0 {
		next = 0
	}
	return next
}

// Apply merges delta into lead and rescores it in place.
func Apply(lead *model.Lead, delta model.Extraction, now time.Time) model.ScoreChange {
	p := &lead.Profile

	var addedPain, addedInterest []string
	p.PainPoints, addedPain = p.PainPoints.Union(delta.PainPoints...)
	p.Interests, addedInterest = p.Interests.Union(delta.Interests...)

	c := Conditions{
		NewPainPoint:     len(addedPain) > 0,
		NewInterest:      len(addedInterest) > 0,
		BudgetNew:        delta.BudgetMentioned && !p.BudgetMentioned,
		TimelineNew:      delta.TimelineMentioned && !p.TimelineMentioned,
		DecisionMakerNew: delta.DecisionMaker.Known() && !p.DecisionMaker.Known(),
	}

	if delta.BudgetMentioned {
		p.BudgetMentioned = true
		if delta.Budget != "" {
			p.Budget = delta.Budget
		}
	}
	if delta.TimelineMentioned {
		p.TimelineMentioned = true
		if delta.Timeline != "" {
			p.Timeline = delta.Timeline
		}
	}
	if delta.DecisionMaker.Known() {
		p.DecisionMaker = delta.DecisionMaker
	}
	if delta.CompanySize != "" {
		p.CompanySize = delta.CompanySize
	}

	prev := lead.Score
	inc := Increment(c)
	lead.Score = Add(prev, inc)
	lead.Status = StatusFor(lead.Score)
	lead.LastQualificationAt = now
	lead.UpdatedAt = now

	return model.ScoreChange{
		Previous:      prev,
		Increment:     inc,
		Score:         lead.Score,
		Status:        lead.Status,
		NewPainPoints: addedPain,
		NewInterests:  addedInterest,
		Conditions:    c.Count(),
	}
}
