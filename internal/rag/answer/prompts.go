package answer

import (
	"fmt"
	"strings"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

const primaryInstruction = "Answer the user's question using the document excerpts below. " +
	"Respond naturally and in a friendly tone. " +
	"If the excerpts do not contain the answer, say that you don't know."

const fallbackInstruction = "The document did not answer this question. " +
	"Answer it from the web results below, and say that the answer comes from the web rather than the document. " +
	"If the web results do not help either, answer from general knowledge and say so."

// BuildPrompt is the first attempt: history, excerpts, question.
func BuildPrompt(question string, chunks []docModel.ScoredChunk, turns []docModel.Turn) string {
	var sb strings.Builder
	sb.WriteString(primaryInstruction)
	writeHistory(&sb, turns)
	writeExcerpts(&sb, chunks)
	writeQuestion(&sb, question)
	return sb.String()
}

// BuildFallbackPrompt is used after a weak answer.
func BuildFallbackPrompt(question string, chunks []docModel.ScoredChunk, turns []docModel.Turn, webResults string) string {
	var sb strings.Builder
	sb.WriteString(fallbackInstruction)
	writeHistory(&sb, turns)
	writeExcerpts(&sb, chunks)
	sb.WriteString("\n\nWeb results:\n")
	sb.WriteString(webResults)
	writeQuestion(&sb, question)
	return sb.String()
}

func writeHistory(sb *strings.Builder, turns []docModel.Turn) {
	if len(turns) == 0 {
		return
	}
	sb.WriteString("\n\nConversation so far:")
	for _, t := range turns {
		fmt.Fprintf(sb, "\nUser: %s\nAssistant: %s", t.Question, t.Answer)
	}
}

func writeExcerpts(sb *strings.Builder, chunks []docModel.ScoredChunk) {
	sb.WriteString("\n\nDocument excerpts:")
	if len(chunks) == 0 {
		sb.WriteString("\n(none)")
		return
	}
	for i, c := range chunks {
		fmt.Fprintf(sb, "\n[%d] (page %d) %s", i+1, c.Chunk.PageNum, strings.TrimSpace(c.Chunk.Text))
	}
}

func writeQuestion(sb *strings.Builder, question string) {
	sb.WriteString("\n\nUser's question: ")
	sb.WriteString(question)
}
