// Package mcp exposes the orchestrator as a Model Context Protocol
// server so agent hosts can drive conversations as tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
)

// ChatResponse is the structured result of the chat tool.
type ChatResponse struct {
	TurnID    string `json:"turn_id" jsonschema_description:"Unique id of this turn"`
	Reply     string `json:"reply" jsonschema_description:"The assistant's reply"`
	Domain    string `json:"domain" jsonschema_description:"Business domain the turn was routed to"`
	Outcome   string `json:"outcome" jsonschema_description:"Supervision outcome (terminate, escalate)"`
	Escalated bool   `json:"escalated" jsonschema_description:"True if the conversation needs a human"`
}

// Server wraps an Orchestrator and exposes it as an MCP server.
type Server struct {
	orchestrator *parley.Orchestrator
	mcpServer    *server.MCPServer
	logger       *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates an MCP server over the orchestrator.
func NewServer(o *parley.Orchestrator, opts ...Option) *Server {
	s := &Server{
		orchestrator: o,
		mcpServer:    server.NewMCPServer("parley-mcp", strings.TrimSpace(parley.Version)),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: chat
	chatTool := mcp.NewTool("chat",
		mcp.WithDescription("Send one message into a conversation and get the orchestrated reply."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Stable id of the conversation")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message")),
		mcp.WithString("user_id", mcp.Description("Optional stable id of the user, enables user-scoped variables")),
		mcp.WithOutputSchema[ChatResponse](),
	)
	s.mcpServer.AddTool(chatTool, mcp.NewStructuredToolHandler(s.handleChat))

	// TOOL: classify
	classifyTool := mcp.NewTool("classify",
		mcp.WithDescription("Classify a message into a business domain without running a turn."),
		mcp.WithString("message", mcp.Required(), mcp.Description("The message to classify")),
		mcp.WithString("conversation_id", mcp.Description("Optional conversation whose history informs the decision")),
		mcp.WithOutputSchema[domain.ClassificationResult](),
	)
	s.mcpServer.AddTool(classifyTool, mcp.NewStructuredToolHandler(s.handleClassify))

	// TOOL: get_conversation
	s.mcpServer.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Fetch the full state of one conversation."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Id of the conversation")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := request.GetString("conversation_id", "")
		state, err := s.orchestrator.Sessions().Load(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrConversationNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("conversation %q not found", id)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(state)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleChat(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ChatResponse, error) {
	conversationID, _ := args["conversation_id"].(string)
	message, _ := args["message"].(string)
	userID, _ := args["user_id"].(string)

	resp, err := s.orchestrator.HandleTurn(ctx, parley.TurnRequest{
		ConversationID: conversationID,
		UserID:         userID,
		Message:        message,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("turn failed: %w", err)
	}

	return ChatResponse{
		TurnID:    resp.TurnID,
		Reply:     resp.Reply,
		Domain:    resp.Domain,
		Outcome:   string(resp.Outcome),
		Escalated: resp.Escalated,
	}, nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.ClassificationResult, error) {
	message, _ := args["message"].(string)
	if message == "" {
		return domain.ClassificationResult{}, fmt.Errorf("message is required")
	}

	var state *domain.ConversationState
	if id, _ := args["conversation_id"].(string); id != "" {
		if loaded, err := s.orchestrator.Sessions().Load(ctx, id); err == nil {
			state = loaded
		}
	}

	return s.orchestrator.Classify(ctx, message, state), nil
}

func (s *Server) registerResources() {
	// EXPOSE: parley://conversations
	s.mcpServer.AddResource(mcp.NewResource("parley://conversations", "Known Conversations",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.orchestrator.Sessions().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "parley://conversations",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
