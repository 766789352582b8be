package learning

import (
	"encoding/json"
	"regexp"
	"strings"
)

// consultationReply is the JSON shape the consultation prompt asks
// for.
type consultationReply struct {
	ProblemAnalysis     string   `json:"problem_analysis"`
	SolutionDescription string   `json:"solution_description"`
	WorkflowSteps       []string `json:"workflow_steps"`
	Confidence          float64  `json:"confidence"`
}

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	stepLineRe    = regexp.MustCompile(`^(?:\d+\s*[.)]\s*|[-*]\s+|[Ss]tep\s+\d+\s*:\s*)(.+)$`)
)

// extractJSON pulls the first plausible JSON object out of an LLM
// reply, tolerating fenced code blocks and surrounding prose.
func extractJSON(reply string) (string, bool) {
	candidate := reply
	if m := fencedBlockRe.FindStringSubmatch(reply); m != nil {
		candidate = m[1]
	}
	candidate = strings.TrimSpace(candidate)

	if json.Valid([]byte(candidate)) && strings.HasPrefix(candidate, "{") {
		return candidate, true
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start >= 0 && end > start {
		inner := candidate[start : end+1]
		if json.Valid([]byte(inner)) {
			return inner, true
		}
	}
	return "", false
}

func parseConsultationReply(reply string) (*consultationReply, bool) {
	raw, ok := extractJSON(reply)
	if !ok {
		return nil, false
	}

	var cr consultationReply
	if err := json.Unmarshal([]byte(raw), &cr); err != nil {
		return nil, false
	}

	steps := cleanSteps(cr.WorkflowSteps)
	if len(steps) == 0 {
		return nil, false
	}
	cr.WorkflowSteps = steps
	return &cr, true
}

// ParseWorkflowSteps extracts recovery steps from an LLM reply. It
// tries strict JSON first, then a line-scan for numbered or bulleted
// steps. When neither finds anything it wraps the raw reply in a
// single manual-intervention step and returns false, so the caller
// always has an actionable plan.
func ParseWorkflowSteps(reply string) ([]string, bool) {
	if cr, ok := parseConsultationReply(reply); ok {
		ParseFallbacksTotal.WithLabelValues("json").Inc()
		return cr.WorkflowSteps, true
	}

	if steps := scanStepLines(reply); len(steps) > 0 {
		ParseFallbacksTotal.WithLabelValues("line_scan").Inc()
		return steps, true
	}

	ParseFallbacksTotal.WithLabelValues("raw").Inc()
	return []string{"manual_intervention: " + strings.TrimSpace(reply)}, false
}

func scanStepLines(reply string) []string {
	var steps []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		m := stepLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if step := strings.TrimSpace(m[1]); step != "" {
			steps = append(steps, step)
		}
	}
	return steps
}

func cleanSteps(steps []string) []string {
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		if s := strings.TrimSpace(step); s != "" {
			out = append(out, s)
		}
	}
	return out
}
