package tools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/models"
)

// Conversation is the pipeline surface the conversation tools need.
type Conversation interface {
	Invoke(ctx context.Context, threadID, question string) (*models.TurnResult, error)
	History(ctx context.Context, threadID string) ([]models.ConversationTurn, error)
	Forget(ctx context.Context, threadID string) error
}

// ConversationToolDeps contains dependencies for the conversation tools.
type ConversationToolDeps struct {
	Conversation Conversation
	Logger       *zap.Logger
}

// RegisterConversationTools registers ask_database, get_thread and forget_thread.
func RegisterConversationTools(s *server.MCPServer, deps *ConversationToolDeps) {
	registerAskTool(s, deps)
	registerGetThreadTool(s, deps)
	registerForgetThreadTool(s, deps)
}

func registerAskTool(s *server.MCPServer, deps *ConversationToolDeps) {
	tool := mcp.NewTool(
		"ask_database",
		mcp.WithDescription(
			"Answer a natural-language question about the connected database. "+
				"The question is turned into a read-only SQL query, executed, and summarized. "+
				"Pass the thread_id returned by a previous call to ask follow-up questions "+
				"such as 'and in 2017?' that depend on earlier turns.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. 'How many orders were delivered per state?'"),
		),
		mcp.WithString(
			"thread_id",
			mcp.Description("Conversation thread to continue. A new thread is started when omitted."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, invalid := requireText(req, "question")
		if invalid != nil {
			return invalid, nil
		}

		threadID := optionalText(req, "thread_id")
		if threadID == "" {
			threadID = uuid.NewString()
		}

		result, err := deps.Conversation.Invoke(ctx, threadID, question)
		if err != nil {
			if errResult := ErrorResultFor(err); errResult != nil {
				return errResult, nil
			}
			deps.Logger.Error("ask_database failed",
				zap.String("thread_id", threadID),
				zap.Error(err))
			return nil, fmt.Errorf("failed to answer question: %w", err)
		}

		return jsonResult(result)
	})
}

type threadHistoryResult struct {
	ThreadID string                    `json:"thread_id"`
	Turns    []models.ConversationTurn `json:"turns"`
}

func registerGetThreadTool(s *server.MCPServer, deps *ConversationToolDeps) {
	tool := mcp.NewTool(
		"get_thread",
		mcp.WithDescription("Return the question and answer turns recorded for a conversation thread."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread to read")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threadID, invalid := requireText(req, "thread_id")
		if invalid != nil {
			return invalid, nil
		}

		turns, err := deps.Conversation.History(ctx, threadID)
		if err != nil {
			if errResult := ErrorResultFor(err); errResult != nil {
				return errResult, nil
			}
			return nil, fmt.Errorf("failed to load thread: %w", err)
		}

		return jsonResult(threadHistoryResult{ThreadID: threadID, Turns: turns})
	})
}

func registerForgetThreadTool(s *server.MCPServer, deps *ConversationToolDeps) {
	tool := mcp.NewTool(
		"forget_thread",
		mcp.WithDescription("Delete the stored state of a conversation thread."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread to delete")),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threadID, invalid := requireText(req, "thread_id")
		if invalid != nil {
			return invalid, nil
		}

		if err := deps.Conversation.Forget(ctx, threadID); err != nil {
			return nil, fmt.Errorf("failed to delete thread: %w", err)
		}
		return jsonResult(map[string]any{"thread_id": threadID, "deleted": true})
	})
}
