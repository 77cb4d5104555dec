// internal/scoring/engine.go
package scoring

import (
	"math"
	"time"

	"lead-automation/internal/common/logger"
	"lead-automation/internal/condition"
	"lead-automation/internal/models"
)

const (
	MinScore = 0
	MaxScore = 100

	emailOpenPoints  = 2
	emailOpenCap     = 10
	emailClickPoints = 3
	emailClickCap    = 15
	pageViewPoints   = 1
	pageViewCap      = 10
	minuteOnSiteCap  = 15
	downloadPoints   = 10
)

// Breakdown explains how a score was reached.
type Breakdown struct {
	RulePoints    map[string]float64 `json:"rulePoints"`
	EmailOpens    float64            `json:"emailOpens"`
	EmailClicks   float64            `json:"emailClicks"`
	PageViews     float64            `json:"pageViews"`
	MinutesOnSite float64            `json:"minutesOnSite"`
	Downloads     float64            `json:"downloads"`
	Raw           float64            `json:"raw"`
	Score         int                `json:"score"`
}

type Engine struct {
	rules  *RuleSet
	logger logger.Logger
	now    func() time.Time
}

func NewEngine(rules *RuleSet, log logger.Logger) *Engine {
	return &Engine{
		rules:  rules,
		logger: log.WithFields(map[string]interface{}{"component": "scoring"}),
		now:    time.Now,
	}
}

// ComputeScore recomputes the lead's score from its attributes and full
// touchpoint history and stores it on the lead.
func (e *Engine) ComputeScore(lead *models.Lead) int {
	b := e.Explain(lead)
	lead.Score = b.Score
	lead.UpdatedAt = e.now()
	e.logger.Debug("Lead score computed", map[string]interface{}{
		"leadId": lead.ID,
		"raw":    b.Raw,
		"score":  b.Score,
	})
	return b.Score
}

// Explain computes the score without touching the lead.
func (e *Engine) Explain(lead *models.Lead) Breakdown {
	b := Breakdown{RulePoints: map[string]float64{}}

	leadRecord := lead.Record()
	tpRecords := make([]map[string]interface{}, len(lead.Journey.Touchpoints))
	for i, tp := range lead.Journey.Touchpoints {
		tpRecords[i] = tp.Record()
	}

	for _, rule := range e.rules.Active() {
		points := rulePoints(rule, leadRecord, tpRecords)
		if points != 0 {
			b.RulePoints[rule.ID] = points
			b.Raw += points
		}
	}

	var opens, clicks, views, seconds, downloads float64
	for _, tp := range lead.Journey.Touchpoints {
		switch tp.Type {
		case models.TouchpointEmailOpen:
			opens++
		case models.TouchpointEmailClick:
			clicks++
		case models.TouchpointPageView:
			views++
		case models.TouchpointDownload:
			downloads++
		}
		seconds += tp.Engagement.TimeOnPageSeconds
	}
	b.EmailOpens = math.Min(opens*emailOpenPoints, emailOpenCap)
	b.EmailClicks = math.Min(clicks*emailClickPoints, emailClickCap)
	b.PageViews = math.Min(views*pageViewPoints, pageViewCap)
	b.MinutesOnSite = math.Min(seconds/60, minuteOnSiteCap)
	// Downloads are deliberately uncapped.
	b.Downloads = downloads * downloadPoints

	b.Raw += b.EmailOpens + b.EmailClicks + b.PageViews + b.MinutesOnSite + b.Downloads
	b.Score = Clamp(b.Raw)
	return b
}

func rulePoints(rule models.ScoringRule, leadRecord map[string]interface{}, tps []map[string]interface{}) float64 {
	if !rule.Category.PerTouchpoint() {
		if condition.Evaluate(leadRecord, rule.Condition) {
			return float64(rule.Points)
		}
		return 0
	}

	matches := 0
	for _, rec := range tps {
		if condition.Evaluate(rec, rule.Condition) {
			matches++
			if rule.Frequency != models.FrequencyMultiple {
				break
			}
		}
	}
	return float64(rule.Points * matches)
}

// Clamp rounds raw and bounds it to [MinScore, MaxScore].
func Clamp(raw float64) int {
	if math.IsNaN(raw) {
		return MinScore
	}
	s := math.Round(raw)
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return int(s)
}
