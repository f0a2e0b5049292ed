package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/viewstate"
)

func testServer(t *testing.T, session *testutil.Session) (*Server, *testutil.MemoryStore) {
	t.Helper()
	store := testutil.NewMemoryStore()
	ctrl := viewstate.New(session, store, viewstate.Options{Address: testutil.Addr, Logger: testutil.Logger()})
	t.Cleanup(ctrl.Close)
	return New(ctrl, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper; dispatch to the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "connect":
		result, err = srv.connect(ctx, req)
	case "get_word_cloud":
		result, err = srv.getWordCloud(ctx, req)
	case "list_contributors":
		result, err = srv.listContributors(ctx, req)
	case "submit_word":
		result, err = srv.submitWord(ctx, req)
	case "initialize_record":
		result, err = srv.initializeRecord(ctx, req)
	case "refresh":
		result, err = srv.refresh(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func decodeState(t *testing.T, r *mcp.CallToolResult) State {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var s State
	if err := json.Unmarshal([]byte(resultText(r)), &s); err != nil {
		t.Fatalf("decode state %q: %v", resultText(r), err)
	}
	return s
}

func TestDisconnectedState(t *testing.T) {
	srv, store := testServer(t, &testutil.Session{})

	s := decodeState(t, callTool(t, srv, "get_word_cloud", nil))
	if s.Phase != "disconnected" || len(s.Entries) != 0 || s.Entries == nil {
		t.Errorf("state = %+v", s)
	}

	r := callTool(t, srv, "submit_word", map[string]interface{}{"word": "ocean"})
	if !r.IsError || !strings.Contains(resultText(r), "connect first") {
		t.Errorf("submit while disconnected = %q", resultText(r))
	}
	if len(store.Calls()) != 0 {
		t.Errorf("store called: %v", store.Calls())
	}
}

func TestConnectRejected(t *testing.T) {
	srv, _ := testServer(t, &testutil.Session{})
	r := callTool(t, srv, "connect", nil)
	if !r.IsError {
		t.Errorf("expected error, got %q", resultText(r))
	}
}

func TestInitializeAndSubmit(t *testing.T) {
	srv, store := testServer(t, &testutil.Session{Interactive: "alice"})

	r := callTool(t, srv, "connect", nil)
	if r.IsError || !strings.Contains(resultText(r), "connected/absent") {
		t.Fatalf("connect = %q", resultText(r))
	}

	s := decodeState(t, callTool(t, srv, "initialize_record", nil))
	if s.Phase != "connected/present" || s.CanInitialize {
		t.Fatalf("after init = %+v", s)
	}

	r = callTool(t, srv, "initialize_record", nil)
	if !r.IsError || !strings.Contains(resultText(r), guideURI) {
		t.Errorf("second init = %q", resultText(r))
	}

	s = decodeState(t, callTool(t, srv, "submit_word", map[string]interface{}{"word": "ocean"}))
	if len(s.Entries) != 1 || s.Entries[0].Value != "ocean" {
		t.Errorf("entries = %+v", s.Entries)
	}

	r = callTool(t, srv, "list_contributors", nil)
	if text := resultText(r); !strings.Contains(text, "alice") {
		t.Errorf("contributors = %q", text)
	}

	want := []string{"fetch", "init", "fetch", "append:ocean", "fetch"}
	if got := store.Calls(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestSubmitEmptyWord(t *testing.T) {
	srv, store := testServer(t, &testutil.Session{Interactive: "alice"})
	store.Seed(testutil.Addr, "alice")
	_ = callTool(t, srv, "connect", nil)
	calls := len(store.Calls())

	r := callTool(t, srv, "submit_word", map[string]interface{}{"word": ""})
	if !r.IsError || !strings.Contains(resultText(r), "empty") {
		t.Errorf("empty submit = %q", resultText(r))
	}
	r = callTool(t, srv, "submit_word", map[string]interface{}{})
	if !r.IsError {
		t.Error("missing word argument should fail")
	}
	if len(store.Calls()) != calls {
		t.Errorf("store called: %v", store.Calls()[calls:])
	}
}

func TestRefreshAndStateResource(t *testing.T) {
	srv, store := testServer(t, &testutil.Session{Interactive: "alice"})
	_ = callTool(t, srv, "connect", nil)
	store.Seed(testutil.Addr, "bob", "bob", "forest")

	s := decodeState(t, callTool(t, srv, "refresh", nil))
	if s.Phase != "connected/present" || len(s.Contributors) != 1 {
		t.Errorf("after refresh = %+v", s)
	}

	contents, err := srv.readStateResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != stateURI || !strings.Contains(tc.Text, "forest") {
		t.Errorf("resource = %+v", contents[0])
	}

	guide, _ := srv.readGuideResource(context.Background(), mcp.ReadResourceRequest{})
	if g, ok := guide[0].(mcp.TextResourceContents); !ok || !strings.Contains(g.Text, "connected/absent") {
		t.Error("guide resource missing state table")
	}
}

func TestStateSurfacesFetchError(t *testing.T) {
	srv, store := testServer(t, &testutil.Session{Interactive: "alice"})
	store.FetchErr = context.DeadlineExceeded
	_ = callTool(t, srv, "connect", nil)

	s := decodeState(t, callTool(t, srv, "get_word_cloud", nil))
	if s.Phase != "connected/unavailable" || s.Error == "" {
		t.Errorf("state = %+v", s)
	}
}
