package httpadapter

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

func newCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func buildTextChatCompletionResponse(completionID string, created int64, modelID string, promptText string, resp *domain.Response) chatCompletionResponse {
	return chatCompletionResponse{
		ID:      completionID,
		Object:  "chat.completion",
		Created: created,
		Model:   modelID,
		Choices: []chatCompletionChoice{{
			Index:        0,
			Message:      assistantMessage{Role: "assistant", Content: resp.Answer},
			FinishReason: "stop",
		}},
		Usage: estimateUsage(promptText, resp.Answer),
		AOK:   toAnswerMetadata(resp),
	}
}

func toAnswerMetadata(resp *domain.Response) *answerMetadata {
	citations := resp.Citations
	if citations == nil {
		citations = []string{}
	}
	sources := make([]sourceRef, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		sources = append(sources, sourceRef{
			ID:    doc.Metadata[domain.MetaID],
			Title: doc.Metadata[domain.MetaTitle],
			URL:   doc.Metadata[domain.MetaURL],
			Score: doc.Score,
		})
	}
	return &answerMetadata{Route: string(resp.Route), Citations: citations, Sources: sources}
}

func estimateUsage(prompt string, completion string) *usage {
	promptTokens := estimateTokenCount(prompt)
	completionTokens := estimateTokenCount(completion)
	return &usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func estimateTokenCount(text string) int {
	return len(strings.Fields(text))
}
