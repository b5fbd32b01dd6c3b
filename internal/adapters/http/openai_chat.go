package httpadapter

import (
	"net/http"
	"strings"
	"time"
)

const defaultModelID = "aok-rag-v1"

func (rt *Router) modelID(requested string) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	if rt.openAICompatModelID != "" {
		return rt.openAICompatModelID
	}
	return defaultModelID
}

func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, modelListResponse{
		Object: "list",
		Data: []modelObject{{
			ID:      rt.modelID(""),
			Object:  "model",
			Created: time.Now().Unix(),
			OwnedBy: "aok-rag-assistant",
		}},
	})
}

func (rt *Router) chatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatCompletionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages are required"})
		return
	}
	question, ok := latestUserQuestion(req.Messages)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one user message with text content is required"})
		return
	}

	modelID := rt.modelID(req.Model)
	completionID := newCompletionID()
	created := time.Now().Unix()

	resp, err := rt.invoke(r.Context(), "chat_completions", question)
	if err != nil {
		writeError(w, err)
		return
	}

	response := buildTextChatCompletionResponse(completionID, created, modelID, question, resp)
	if response.Usage != nil {
		rt.httpMetrics.RecordTokenUsage(serviceName, "chat_completions", modelID, response.Usage.PromptTokens, response.Usage.CompletionTokens)
	}

	if req.Stream {
		head := chatCompletionChunk{ID: completionID, Created: created, Model: modelID}
		if err := streamAnswer(w, head, resp.Answer, rt.openAICompatStreamChunkChars); err != nil {
			rt.logger.Warn("sse_write_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, response)
}
