package answer

import (
	"strings"
	"unicode/utf8"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

// ClassifyAnswer flags answers that are empty, too short or hedge.
func ClassifyAnswer(text string) docModel.FallbackDecision {
	return classify(text, config.MinAnswerLength, config.HedgePhrases)
}

func classify(text string, minLength int, phrases []string) docModel.FallbackDecision {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return docModel.FallbackDecision{IsWeak: true, Reason: "empty answer"}
	}
	if utf8.RuneCountInString(trimmed) < minLength {
		return docModel.FallbackDecision{IsWeak: true, Reason: "answer shorter than minimum length"}
	}

	lower := strings.ToLower(strings.ReplaceAll(trimmed, "’", "'"))
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return docModel.FallbackDecision{IsWeak: true, Reason: "hedge phrase: " + p}
		}
	}
	return docModel.FallbackDecision{}
}
