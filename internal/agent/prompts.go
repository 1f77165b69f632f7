package agent

import (
	"fmt"
	"strings"

	"github.com/prepview/interview-ai-platform/internal/session"
)

const interviewerSystemPrompt = `You are a senior system design interviewer conducting a practice interview.

HOW TO RUN THE INTERVIEW:
- Open with one concrete design problem sized to the candidate's background. State requirements briefly and ask them to start.
- Ask ONE question at a time. Never stack multiple questions in a single turn.
- Follow the candidate's thread: probe the decisions they actually made (data model, partitioning, consistency, failure handling, capacity) rather than jumping to a script.
- When the candidate hand-waves, ask for specifics: numbers, data shapes, what happens when a node dies.
- When the candidate references a diagram or whiteboard snapshot, acknowledge it and ask about a concrete element of it.
- Do not lecture, do not give away answers, and do not evaluate out loud. Save judgment for the written evaluation.
- Keep each turn short: 2-4 sentences, ending in a question.

TONE:
- Professional and encouraging, like a colleague who wants the candidate to do well.
- If the candidate is stuck, offer a small nudge (a constraint to consider), not a solution.`

// backgroundDirective turns the resume-derived summary into a phrasing and
// difficulty bias. It never changes the interview flow itself.
func backgroundDirective(bg *session.Background) string {
	if bg == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Candidate background (bias question difficulty and vocabulary, nothing else):\n")
	if bg.Tier != "" {
		fmt.Fprintf(&b, "- Experience tier: %s\n", bg.Tier)
	}
	if bg.YearsExperience > 0 {
		fmt.Fprintf(&b, "- Years of experience: %d\n", bg.YearsExperience)
	}
	if len(bg.Expertise) > 0 {
		fmt.Fprintf(&b, "- Domain expertise: %s\n", strings.Join(bg.Expertise, ", "))
	}
	switch bg.Tier {
	case session.TierJunior:
		b.WriteString("Prefer a well-scoped problem with familiar building blocks; define jargon when you use it.")
	case session.TierSenior, session.TierStaff, session.TierPrincipal:
		b.WriteString("Prefer an open-ended problem with ambiguous requirements; push on trade-offs and failure modes.")
	default:
		b.WriteString("Use a moderately scoped problem and adjust based on their first answer.")
	}
	return b.String()
}

// difficultyDirective maps a performance signal to a bias for upcoming turns.
func difficultyDirective(signal string) string {
	switch signal {
	case SignalHigh:
		return "The candidate is performing strongly. Increase depth: probe edge cases, consistency guarantees, and capacity estimates."
	case SignalLow:
		return "The candidate is struggling. Ease up: narrow the scope of your next questions and offer one concrete anchor to reason from."
	case SignalMedium:
		return "The candidate is doing adequately. Hold the current difficulty."
	default:
		return ""
	}
}

func artifactNote(artifactID string) string {
	return fmt.Sprintf("The candidate attached a visual artifact (reference %s) with this response, e.g. a whiteboard snapshot. Ask about a concrete element of it.", artifactID)
}
