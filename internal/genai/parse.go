package genai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/edustack/doubtsolver/internal/model"
)

// stepPrefix matches ordinal or bullet step markers at line start:
// "1.", "2)", "Step 3:", "-", "*".
var stepPrefix = regexp.MustCompile(`(?i)^\s*(?:(?:step\s+)?\d+[.):]|[-*•])\s+`)

// ParseAnswer turns raw backend text into a structured Answer. It never
// fails: direct JSON parse first, then the first balanced {...}
// substring, then heuristic line-based structuring. Confidence is
// normalized to [0,1].
func ParseAnswer(raw string) *Answer {
	cleaned := cleanJSON(raw)

	var ans Answer
	if err := json.Unmarshal([]byte(cleaned), &ans); err == nil {
		finishParsed(&ans, raw)
		return &ans
	}

	if obj := firstBalancedObject(raw); obj != "" {
		if err := json.Unmarshal([]byte(obj), &ans); err == nil {
			finishParsed(&ans, raw)
			return &ans
		}
	}

	return heuristicAnswer(raw)
}

func finishParsed(ans *Answer, raw string) {
	ans.Confidence = model.NormalizeConfidence(ans.Confidence)
	// A JSON object without any of the expected fields is better served
	// by heuristic structuring of the raw text.
	if ans.FinalAnswer == "" && len(ans.Steps) == 0 {
		*ans = *heuristicAnswer(raw)
		return
	}
	if ans.Meta.Difficulty == "" {
		ans.Meta.Difficulty = string(model.DifficultyUnknown)
	}
}

// cleanJSON strips markdown code fences and trims to the outermost
// object when present.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	return strings.TrimSpace(text)
}

// firstBalancedObject returns the first balanced {...} substring,
// respecting JSON string literals and escapes.
func firstBalancedObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// heuristicAnswer structures free text: lines with a step prefix become
// steps; long remaining lines are concatenated into the final answer.
func heuristicAnswer(raw string) *Answer {
	ans := &Answer{
		Meta: model.AnswerMeta{Difficulty: string(model.DifficultyUnknown)},
	}

	var rest []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if stepPrefix.MatchString(trimmed) {
			ans.Steps = append(ans.Steps, stepPrefix.ReplaceAllString(trimmed, ""))
			continue
		}
		if len(trimmed) > 40 {
			rest = append(rest, trimmed)
		}
	}

	ans.FinalAnswer = strings.Join(rest, " ")
	if ans.FinalAnswer == "" && len(ans.Steps) > 0 {
		ans.FinalAnswer = ans.Steps[len(ans.Steps)-1]
	}
	if ans.FinalAnswer == "" {
		ans.FinalAnswer = strings.TrimSpace(raw)
	}
	ans.Explanation = ans.FinalAnswer
	ans.Confidence = 0.5
	return ans
}
