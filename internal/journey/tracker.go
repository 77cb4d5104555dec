// internal/journey/tracker.go
package journey

import (
	"regexp"
	"strings"
	"time"

	"lead-automation/internal/common/logger"
	"lead-automation/internal/models"
)

var (
	pricingPattern    = regexp.MustCompile(`(?i)(pricing|plans|/price)`)
	demoPattern       = regexp.MustCompile(`(?i)(demo|book-a-call|contact-sales)`)
	trialPattern      = regexp.MustCompile(`(?i)(trial|sign-?up|get-started)`)
	onboardingPattern = regexp.MustCompile(`(?i)(onboarding|welcome|getting-started|setup)`)
	advocacyPattern   = regexp.MustCompile(`(?i)(referral|review|testimonial|case-study)`)
)

// transition fires when the lead is in one of from (any stage when empty),
// the touchpoint has one of types and, when set, its content matches.
type transition struct {
	from    []models.Stage
	types   []models.TouchpointType
	content *regexp.Regexp
	to      models.Stage
}

// The table is sparse on purpose. The first matching row wins.
var transitions = []transition{
	{types: []models.TouchpointType{models.TouchpointPurchase}, to: models.StagePurchase},
	{
		from:    []models.Stage{models.StageAwareness, models.StageInterest},
		types:   []models.TouchpointType{models.TouchpointPageView},
		content: pricingPattern,
		to:      models.StageConsideration,
	},
	{
		from:  []models.Stage{models.StageAwareness},
		types: []models.TouchpointType{models.TouchpointFormFill, models.TouchpointDownload, models.TouchpointWebinarAttendance},
		to:    models.StageInterest,
	},
	{
		from:  []models.Stage{models.StageInterest},
		types: []models.TouchpointType{models.TouchpointDownload, models.TouchpointWebinarAttendance},
		to:    models.StageConsideration,
	},
	{
		from:    []models.Stage{models.StageConsideration},
		types:   []models.TouchpointType{models.TouchpointPageView, models.TouchpointFormFill},
		content: demoPattern,
		to:      models.StageIntent,
	},
	{
		from:    []models.Stage{models.StageIntent},
		types:   []models.TouchpointType{models.TouchpointPageView, models.TouchpointFormFill, models.TouchpointDownload},
		content: trialPattern,
		to:      models.StageEvaluation,
	},
	{
		from:    []models.Stage{models.StagePurchase},
		types:   []models.TouchpointType{models.TouchpointPageView, models.TouchpointEmailClick},
		content: onboardingPattern,
		to:      models.StageOnboarding,
	},
	{
		from:  []models.Stage{models.StageOnboarding},
		types: []models.TouchpointType{models.TouchpointSupportTicket},
		to:    models.StageRetention,
	},
	{
		from:    []models.Stage{models.StageRetention},
		types:   []models.TouchpointType{models.TouchpointFormFill},
		content: advocacyPattern,
		to:      models.StageAdvocacy,
	},
}

// NextStage returns the stage a touchpoint moves the lead to. ok is false
// when no row matches or the target equals the current stage.
func NextStage(current models.Stage, tp models.Touchpoint) (models.Stage, bool) {
	target := content(tp)
	for _, tr := range transitions {
		if len(tr.from) > 0 && !hasStage(tr.from, current) {
			continue
		}
		if !hasType(tr.types, tp.Type) {
			continue
		}
		if tr.content != nil && !tr.content.MatchString(target) {
			continue
		}
		if tr.to == current {
			return current, false
		}
		return tr.to, true
	}
	return current, false
}

// Change describes a stage transition applied to a lead.
type Change struct {
	From models.Stage
	To   models.Stage
	At   time.Time
}

type Tracker struct {
	logger logger.Logger
	now    func() time.Time
}

func NewTracker(log logger.Logger) *Tracker {
	return &Tracker{
		logger: log.WithFields(map[string]interface{}{"component": "journey"}),
		now:    time.Now,
	}
}

// Apply advances the lead's journey for tp, closing the open stage-history
// entry and opening a new one. It does not append tp to the journey.
func (t *Tracker) Apply(lead *models.Lead, tp models.Touchpoint) (Change, bool) {
	current := lead.Journey.CurrentStage
	if current == "" {
		current = models.StageAwareness
	}
	next, ok := NextStage(current, tp)
	if !ok {
		return Change{}, false
	}

	at := tp.Timestamp
	if at.IsZero() {
		at = t.now()
	}
	closeOpenVisit(lead, at)
	lead.Journey.StageHistory = append(lead.Journey.StageHistory, models.StageVisit{Stage: next, EnteredAt: at})
	lead.Journey.CurrentStage = next
	lead.UpdatedAt = t.now()

	t.logger.Info("Journey stage changed", map[string]interface{}{
		"leadId":       lead.ID,
		"from":         current,
		"to":           next,
		"touchpointId": tp.ID,
	})
	return Change{From: current, To: next, At: at}, true
}

func closeOpenVisit(lead *models.Lead, at time.Time) {
	h := lead.Journey.StageHistory
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].ExitedAt != nil {
			continue
		}
		exited := at
		h[i].ExitedAt = &exited
		dwell := at.Sub(h[i].EnteredAt).Hours() / 24
		if dwell < 0 {
			dwell = 0
		}
		h[i].DwellDays = dwell
		return
	}
}

func content(tp models.Touchpoint) string {
	return strings.Join([]string{tp.Content.URL, tp.Content.Title, tp.Content.FormID, tp.Content.AssetID}, " ")
}

func hasStage(stages []models.Stage, s models.Stage) bool {
	for _, v := range stages {
		if v == s {
			return true
		}
	}
	return false
}

func hasType(types []models.TouchpointType, t models.TouchpointType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}
