// Package mcpadapter exposes the assistant as an MCP tool over stdio.
package mcpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
	"github.com/kirillkom/aok-rag-assistant/internal/observability/metrics"
)

const toolAskQuestion = "ask_question"

func NewServer(answerer ports.QuestionAnswerer, logger *slog.Logger, version string, timeout time.Duration) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := server.NewMCPServer(
		"aok-rag-assistant",
		version,
		server.WithToolCapabilities(true),
	)
	s.AddTool(askQuestionTool(), handleAskQuestion(answerer, logger, timeout))
	return s
}

func askQuestionTool() mcp.Tool {
	return mcp.NewTool(toolAskQuestion,
		mcp.WithDescription("Beantwortet Fragen zur AOK (Leistungen, Beiträge, Services) mit Quellenangaben aus dem geprüften Wissensbestand."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Die Frage in deutscher Sprache"),
		),
	)
}

func handleAskQuestion(answerer ports.QuestionAnswerer, logger *slog.Logger, timeout time.Duration) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcp.NewToolResultError("question parameter is required"), nil
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := answerer.Invoke(ctx, question)
		if err != nil {
			logger.Error("mcp_ask_failed", "error_kind", metrics.ErrorKind(err), "error", err)
			return mcp.NewToolResultError("Die Frage konnte nicht beantwortet werden (" + metrics.ErrorKind(err) + ")."), nil
		}
		logger.Info("mcp_ask_done", "route", string(resp.Route), "docs", len(resp.Docs), "duration_ms", time.Since(start).Milliseconds())
		return mcp.NewToolResultText(resp.Answer), nil
	}
}
