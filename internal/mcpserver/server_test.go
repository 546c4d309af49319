package mcpserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ansuz/internal/docs"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/reconcile"
)

type fakeEngine struct {
	dryRuns []bool
	report  *reconcile.Report
	syncErr error
	tree    *docs.Tree
	treeErr error
}

func (f *fakeEngine) Sync(_ context.Context, dryRun bool) (*reconcile.Report, error) {
	f.dryRuns = append(f.dryRuns, dryRun)
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return f.report, nil
}

func (f *fakeEngine) Docs() (*docs.Tree, error) {
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	return f.tree, nil
}

func sampleReport() *reconcile.Report {
	return &reconcile.Report{
		IndexURL: "https://discourse.example.com/t/index/1",
		Records: []reconcile.ActionRecord{
			{URL: "https://discourse.example.com/t/intro/2", Path: "intro", Kind: reconcile.ActionCreate, Result: reconcile.ResultSuccess},
		},
	}
}

func callTool(t *testing.T, srv *Server, name string) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name

	var result *mcp.CallToolResult
	var err error
	switch name {
	case "plan_sync":
		result, err = srv.planSync(ctx, req)
	case "publish_docs":
		result, err = srv.publishDocs(ctx, req)
	case "list_docs":
		result, err = srv.listDocs(ctx, req)
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

func TestPlanSync_UsesDryRun(t *testing.T) {
	eng := &fakeEngine{report: sampleReport()}
	srv := New(eng, eng)

	r := callTool(t, srv, "plan_sync")
	if len(eng.dryRuns) != 1 || !eng.dryRuns[0] {
		t.Fatalf("plan_sync must run dry, got %v", eng.dryRuns)
	}
	text := resultText(r)
	if !strings.Contains(text, `"index_url": "https://discourse.example.com/t/index/1"`) {
		t.Errorf("missing index url in %q", text)
	}
}

func TestPublishDocs_RealRun(t *testing.T) {
	eng := &fakeEngine{report: sampleReport()}
	srv := New(eng, eng)

	r := callTool(t, srv, "publish_docs")
	if len(eng.dryRuns) != 1 || eng.dryRuns[0] {
		t.Fatalf("publish_docs must not run dry, got %v", eng.dryRuns)
	}
	text := resultText(r)
	if !strings.Contains(text, `"success"`) {
		t.Errorf("missing action result in %q", text)
	}
}

func TestPublishDocs_SyncError(t *testing.T) {
	eng := &fakeEngine{syncErr: errors.New("forum unreachable")}
	srv := New(eng, eng)

	r := callTool(t, srv, "publish_docs")
	if !r.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(resultText(r), "forum unreachable") {
		t.Errorf("unexpected error text: %q", resultText(r))
	}
}

func TestListDocs(t *testing.T) {
	eng := &fakeEngine{tree: &docs.Tree{Docs: []models.Document{
		{FilePath: "01-intro.md", TablePath: "intro", Level: 1, Title: "Intro", Content: "# Intro"},
		{TablePath: "guides", Level: 1, Title: "Guides"},
	}}}
	srv := New(eng, eng)

	text := resultText(callTool(t, srv, "list_docs"))
	if !strings.Contains(text, `"path": "intro"`) {
		t.Errorf("missing doc entry in %q", text)
	}
	if !strings.Contains(text, `"group": true`) {
		t.Errorf("missing group flag in %q", text)
	}
}
