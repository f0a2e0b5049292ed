// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the word cloud client to LLMs via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/viewstate"
)

const (
	stateURI = "ansuz://state"
	guideURI = "ansuz://guide"
)

// Client is the subset of *viewstate.Controller the tools drive.
type Client interface {
	View() viewstate.View
	Connect(ctx context.Context) error
	SubmitWord(ctx context.Context, text string) error
	InitializeOneTime(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// State is the JSON form of a view snapshot.
type State struct {
	Phase         string                  `json:"phase"`
	Identity      models.Identity         `json:"identity,omitempty"`
	Entries       []models.WordCloudEntry `json:"entries"`
	Contributors  models.ContributorList  `json:"contributors"`
	Digest        string                  `json:"digest,omitempty"`
	Error         string                  `json:"error,omitempty"`
	CanInitialize bool                    `json:"can_initialize"`
}

func stateOf(v viewstate.View) State {
	s := State{
		Phase:         v.Phase.String(),
		Identity:      v.Identity,
		Entries:       v.Entries,
		Contributors:  v.Contributors,
		Digest:        v.Digest,
		CanInitialize: v.CanInitialize(),
	}
	if s.Entries == nil {
		s.Entries = []models.WordCloudEntry{}
	}
	if s.Contributors == nil {
		s.Contributors = models.ContributorList{}
	}
	if v.Err != nil {
		s.Error = v.Err.Error()
	}
	return s
}

// Server wraps the MCP server with word cloud tools.
type Server struct {
	mcp    *server.MCPServer
	client Client
}

// New creates a new MCP server with all tools registered.
func New(client Client, version string) *Server {
	s := &Server{client: client}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("connect",
		mcp.WithDescription("Connect the wallet. May prompt the user for approval on the terminal."),
	), s.connect)

	s.mcp.AddTool(mcp.NewTool("get_word_cloud",
		mcp.WithDescription("Return the current state and word cloud entries in append order."),
	), s.getWordCloud)

	s.mcp.AddTool(mcp.NewTool("list_contributors",
		mcp.WithDescription("List the distinct wallet identities that contributed, in first-appearance order."),
	), s.listContributors)

	s.mcp.AddTool(mcp.NewTool("submit_word",
		mcp.WithDescription("Append a word to the shared cloud. Requires a connected wallet and an initialized record."),
		mcp.WithString("word", mcp.Required(), mcp.Description("The word to add (non-empty)")),
	), s.submitWord)

	s.mcp.AddTool(mcp.NewTool("initialize_record",
		mcp.WithDescription("Create the shared record. Only valid when the state is connected/absent. "+
			"Read the ansuz://guide resource for the full lifecycle."),
	), s.initializeRecord)

	s.mcp.AddTool(mcp.NewTool("refresh",
		mcp.WithDescription("Re-fetch the shared record from the node."),
	), s.refresh)

	s.mcp.AddResource(
		mcp.NewResource(stateURI, "Client State",
			mcp.WithResourceDescription("Current connection state, word cloud, and contributors."),
			mcp.WithMIMEType("application/json"),
		),
		s.readStateResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Usage Guide",
			mcp.WithResourceDescription("States of the client and which tools are valid in each."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) connect(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.client.Connect(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("connect failed: %v", err)), nil
	}
	v := s.client.View()
	return mcp.NewToolResultText(fmt.Sprintf("connected as %s (%s)", v.Identity, v.Phase)), nil
}

func (s *Server) getWordCloud(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(stateOf(s.client.View())), nil
}

func (s *Server) listContributors(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(stateOf(s.client.View()).Contributors), nil
}

func (s *Server) submitWord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	word, err := req.RequireString("word")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.client.SubmitWord(ctx, word); err != nil {
		return mcp.NewToolResultError(actionError("submit_word", err)), nil
	}
	return jsonResult(stateOf(s.client.View())), nil
}

func (s *Server) initializeRecord(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.client.InitializeOneTime(ctx); err != nil {
		return mcp.NewToolResultError(actionError("initialize_record", err)), nil
	}
	return jsonResult(stateOf(s.client.View())), nil
}

func (s *Server) refresh(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.client.Refresh(ctx); err != nil {
		return mcp.NewToolResultError(actionError("refresh", err)), nil
	}
	return jsonResult(stateOf(s.client.View())), nil
}

func actionError(tool string, err error) string {
	switch {
	case errors.Is(err, apperr.ErrEmptyInput):
		return "word must not be empty"
	case errors.Is(err, apperr.ErrDisconnected):
		return "wallet not connected; call connect first"
	case errors.Is(err, apperr.ErrInvalidState):
		return fmt.Sprintf("%s is not valid in the current state; see %s", tool, guideURI)
	default:
		return fmt.Sprintf("%s failed: %v", tool, err)
	}
}

func (s *Server) readStateResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.Marshal(stateOf(s.client.View()))
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      stateURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     Guide,
		},
	}, nil
}
