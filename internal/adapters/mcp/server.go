package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const Version = "1.0.0"

const (
	askToolName    = "ask_legal_question"
	searchToolName = "search_legal_corpus"
)

func askSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Question in Portuguese about Brazilian law, a greeting or an arithmetic expression."}
  },
  "required": ["query"]
}`)
}

func searchSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "Search terms."},
    "top_k": {"type": "integer", "minimum": 1, "maximum": 100, "description": "Number of passages to return."},
    "category": {"type": "string", "description": "Restrict results to one legal area, e.g. Consumidor."}
  },
  "required": ["query"]
}`)
}

// Tools exposes the assistant to MCP clients. The chat service is expected to
// be safe for concurrent use.
type Tools struct {
	chat        ports.ChatService
	retriever   ports.Retriever
	defaultTopK int
}

func NewTools(chat ports.ChatService, retriever ports.Retriever, defaultTopK int) *Tools {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &Tools{chat: chat, retriever: retriever, defaultTopK: defaultTopK}
}

func NewServer(name string, tools *Tools) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		name,
		Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Assistente jurídico em português: responde dúvidas sobre direito brasileiro e busca trechos no acervo."),
	)

	mcpServer.AddTool(
		mcp.NewToolWithRawSchema(askToolName, "Answer a question with the legal assistant, routing it to retrieval, small talk or the calculator", askSchema()),
		tools.HandleAsk,
	)
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema(searchToolName, "Rank passages of the legal corpus against a query", searchSchema()),
		tools.HandleSearch,
	)
	return mcpServer
}

func (t *Tools) HandleAsk(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}
	return mcp.NewToolResultText(t.chat.Ask(query)), nil
}

func (t *Tools) HandleSearch(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}
	topK := request.GetInt("top_k", t.defaultTopK)
	if topK <= 0 {
		return mcp.NewToolResultError(fmt.Sprintf("top_k must be positive, got %d", topK)), nil
	}
	category := request.GetString("category", "")

	results := t.retriever.Search(query, topK, category)
	if len(results) == 0 {
		return mcp.NewToolResultText("Nenhum trecho encontrado."), nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s (score %.3f)\n%s", i+1, r.Title, r.HybridScore, r.Content)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ServeStdio runs the server over stdin/stdout until ctx is cancelled or the
// client disconnects.
func ServeStdio(ctx context.Context, mcpServer *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(mcpServer)
	return stdio.Listen(ctx, in, out)
}
