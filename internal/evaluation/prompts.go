package evaluation

import (
	"fmt"
	"strings"

	"github.com/prepview/interview-ai-platform/internal/session"
)

const evaluatorSystemPrompt = `You are an experienced interview evaluator reviewing the transcript of a system design practice interview.
Base every judgment only on what the candidate actually said in the transcript.
Respond with a single JSON object and nothing else.`

func formatTranscript(turns []session.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		speaker := "Candidate"
		if turn.Role == session.RoleInterviewer {
			speaker = "Interviewer"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Content)
		if turn.ArtifactID != "" {
			fmt.Fprintf(&b, "[candidate attached artifact %s]\n", turn.ArtifactID)
		}
	}
	if b.Len() == 0 {
		return "(no conversation took place)"
	}
	return b.String()
}

func competencyPrompt(transcript string) string {
	return fmt.Sprintf(`Score the candidate on each of these competencies: %s.

For each competency return a score from 0 to 100, a confidence of "high", "medium", or "low", and 1-3 short evidence strings quoting or paraphrasing the transcript.

Return JSON of this exact shape:
{"competencies": {"<name>": {"score": 0, "confidence": "low", "evidence": ["..."]}}}

Transcript:
%s`, strings.Join(Competencies, ", "), transcript)
}

func feedbackPrompt(transcript string) string {
	return fmt.Sprintf(`Sort your observations about the candidate into three buckets: things that went well, things that went okay, and things that need improvement. Each item needs a short description and one evidence string from the transcript.

Return JSON of this exact shape:
{"went_well": [{"description": "...", "evidence": "..."}], "went_okay": [...], "needs_improvement": [...]}

Transcript:
%s`, transcript)
}

func planPrompt(transcript string, priorityAreas []string) string {
	return fmt.Sprintf(`The candidate's weakest areas were: %s.

Produce an ordered improvement plan: concrete numbered steps the candidate should take, each with a short description and a list of study resources, plus a general resource list.

Return JSON of this exact shape:
{"steps": [{"description": "...", "resources": ["..."]}], "resources": ["..."]}

Transcript:
%s`, strings.Join(priorityAreas, ", "), transcript)
}
