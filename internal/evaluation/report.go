package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Confidence tiers for competency scores.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Competencies is the fixed set of evaluation dimensions, in report order.
var Competencies = []string{
	"problem_decomposition",
	"scalability",
	"reliability",
	"data_modeling",
	"tradeoff_analysis",
	"communication_clarity",
	"design_patterns",
}

// CompetencyScore is one scored evaluation dimension.
type CompetencyScore struct {
	Score      float64  `json:"score"` // 0-100
	Confidence string   `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

// FeedbackItem is one observation with its supporting evidence.
type FeedbackItem struct {
	Description string `json:"description"`
	Evidence    string `json:"evidence,omitempty"`
}

// Feedback buckets observations by how the candidate did.
type Feedback struct {
	WentWell         []FeedbackItem `json:"went_well"`
	WentOkay         []FeedbackItem `json:"went_okay"`
	NeedsImprovement []FeedbackItem `json:"needs_improvement"`
}

// PlanStep is one ordered, concrete improvement action.
type PlanStep struct {
	Description string   `json:"description"`
	Resources   []string `json:"resources,omitempty"`
}

// ImprovementPlan lists priority areas and the steps to work on them.
type ImprovementPlan struct {
	PriorityAreas []string   `json:"priority_areas"`
	Steps         []PlanStep `json:"steps"`
	Resources     []string   `json:"resources,omitempty"`
}

// ModeAnalysis holds one short textual assessment per enabled communication
// mode; a nil field means the mode was not enabled for the session.
type ModeAnalysis struct {
	TextActivity    *string `json:"text_activity,omitempty"`
	AudioQuality    *string `json:"audio_quality,omitempty"`
	VideoPresence   *string `json:"video_presence,omitempty"`
	WhiteboardUsage *string `json:"whiteboard_usage,omitempty"`
	ScreenActivity  *string `json:"screen_activity,omitempty"`
	Overall         string  `json:"overall"`
}

// Report is the scored evaluation of one completed session. Exactly one
// report exists per completed session; regeneration overwrites it.
type Report struct {
	SessionID             uuid.UUID                  `json:"session_id"`
	OverallScore          float64                    `json:"overall_score"` // 0-100
	CompetencyScores      map[string]CompetencyScore `json:"competency_scores"`
	Feedback              Feedback                   `json:"feedback"`
	Plan                  ImprovementPlan            `json:"improvement_plan"`
	CommunicationAnalysis ModeAnalysis               `json:"communication_mode_analysis"`
	GeneratedAt           time.Time                  `json:"generated_at"`
}

// Store persists evaluation reports, one per session; SaveReport overwrites
// an existing report for the same session id.
type Store interface {
	SaveReport(ctx context.Context, report *Report) error
	GetReport(ctx context.Context, sessionID uuid.UUID) (*Report, error)
}
