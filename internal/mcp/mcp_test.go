package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/yuripa07/itemsmith/internal/config"
	"github.com/yuripa07/itemsmith/internal/db"
	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/generate"
	"github.com/yuripa07/itemsmith/internal/prefs"
	"github.com/yuripa07/itemsmith/internal/session"
	"github.com/yuripa07/itemsmith/internal/tracker"
	"github.com/yuripa07/itemsmith/internal/workitem"
)

type stubGenerator struct {
	records []workitem.Record
	err     error
	input   generate.Input
	called  bool
}

func (s *stubGenerator) Generate(ctx context.Context, input generate.Input) ([]workitem.Record, error) {
	s.called = true
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type stubSubmitter struct {
	link   string
	err    error
	called bool
	rec    workitem.Record
	creds  tracker.Credentials
}

func (s *stubSubmitter) Create(ctx context.Context, creds tracker.Credentials, rec workitem.Record) (*tracker.CreatedItem, error) {
	s.called = true
	s.rec = rec
	s.creds = creds
	if s.err != nil {
		return nil, s.err
	}
	return &tracker.CreatedItem{Link: s.link}, nil
}

// testSetup creates a temporary database, session and stub backends.
func testSetup(t *testing.T) (*Handlers, *stubGenerator, *stubSubmitter) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	gen := &stubGenerator{}
	sub := &stubSubmitter{link: "https://dev.azure.com/acme/rocket/_workitems/edit/7"}
	h := NewHandlers(prefs.New(database), session.New(), gen, sub)
	return h, gen, sub
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func seedCreds(t *testing.T, h *Handlers) {
	t.Helper()
	creds := tracker.Credentials{Organization: "acme", Project: "rocket", PAT: "s3cr3t"}
	if err := h.store.SetCredentials(creds); err != nil {
		t.Fatalf("seed credentials: %v", err)
	}
}

func testRecords(titles ...string) []workitem.Record {
	records := make([]workitem.Record, 0, len(titles))
	for _, title := range titles {
		records = append(records, workitem.Record{
			ID:    workitem.NewID(),
			Title: title,
			Kind:  workitem.KindTask,
		})
	}
	return records
}

// TestHandleGenerate tests the workitem_generate handler.
func TestHandleGenerate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		genErr    error
		wantError bool
		errorCode string
	}{
		{
			name:      "valid notes and kind",
			args:      map[string]any{"notes": "we need a login page", "kind": "Task"},
			wantError: false,
		},
		{
			name:      "backend failure surfaces as error result",
			args:      map[string]any{"notes": "notes", "kind": "Task"},
			genErr:    errors.NewGenerationFailed(context.DeadlineExceeded),
			wantError: true,
			errorCode: "GENERATION_FAILED",
		},
		{
			name:      "validation failure surfaces as error result",
			args:      map[string]any{"notes": "", "kind": "Task"},
			genErr:    errors.NewInvalidRequest("notes must not be empty"),
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, gen, _ := testSetup(t)
			gen.records = testRecords("generated item")
			gen.err = tt.genErr

			result, err := h.HandleGenerate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else {
				if result.IsError {
					t.Errorf("expected success, got error: %v", extractErrorMessage(result))
				}
			}
		})
	}
}

func TestHandleGenerate_ReplacesWorkingSet(t *testing.T) {
	h, gen, _ := testSetup(t)
	ctx := context.Background()

	gen.records = testRecords("first run")
	if result, _ := h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"})); result.IsError {
		t.Fatalf("first run failed: %v", extractErrorMessage(result))
	}

	gen.records = testRecords("second run a", "second run b")
	if result, _ := h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"})); result.IsError {
		t.Fatalf("second run failed: %v", extractErrorMessage(result))
	}

	entries := h.session.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Record.Title != "second run a" {
		t.Errorf("working set not replaced, first entry = %q", entries[0].Record.Title)
	}
}

func TestHandleGenerate_FailureKeepsPriorSet(t *testing.T) {
	h, gen, _ := testSetup(t)
	ctx := context.Background()

	gen.records = testRecords("survivor")
	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))

	gen.err = errors.NewGenerationFailed(context.DeadlineExceeded)
	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))

	entries := h.session.Entries()
	if len(entries) != 1 || entries[0].Record.Title != "survivor" {
		t.Error("failed run should leave the prior working set intact")
	}
	if h.session.Generating() {
		t.Error("generation flag should be released after a failure")
	}
}

func TestHandleGenerate_StoredTemplateUsedByDefault(t *testing.T) {
	h, gen, _ := testSetup(t)
	ctx := context.Background()
	gen.records = testRecords("x")

	if err := h.store.SetInstructionTemplate("Always use British spelling."); err != nil {
		t.Fatalf("seed template: %v", err)
	}

	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))
	if gen.input.Instructions != "Always use British spelling." {
		t.Errorf("instructions = %q, want stored template", gen.input.Instructions)
	}

	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task", "instructions": "Override."}))
	if gen.input.Instructions != "Override." {
		t.Errorf("instructions = %q, want explicit override", gen.input.Instructions)
	}
}

// TestHandleSubmit tests the workitem_submit handler.
func TestHandleSubmit(t *testing.T) {
	h, gen, sub := testSetup(t)
	ctx := context.Background()
	seedCreds(t, h)

	gen.records = testRecords("ship this")
	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))
	id := gen.records[0].ID

	result, err := h.HandleSubmit(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	if sub.rec.ID != id {
		t.Errorf("submitted record ID = %q, want %q", sub.rec.ID, id)
	}

	var output SubmitResponse
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal submit result: %v", err)
	}
	if output.Link != sub.link {
		t.Errorf("link = %q, want %q", output.Link, sub.link)
	}

	entry, err := h.session.Entry(id)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.State.Status != session.StatusSucceeded {
		t.Errorf("status = %q, want succeeded", entry.State.Status)
	}
}

func TestHandleSubmit_Unconfigured(t *testing.T) {
	h, gen, sub := testSetup(t)
	ctx := context.Background()

	gen.records = testRecords("blocked")
	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))

	result, _ := h.HandleSubmit(ctx, makeRequest(map[string]any{"id": gen.records[0].ID}))
	if !result.IsError {
		t.Fatal("expected error result while unconfigured")
	}
	assertErrorCode(t, result, "NOT_CONFIGURED")
	if sub.called {
		t.Error("submitter must not be called while unconfigured")
	}
}

func TestHandleSubmit_CredentialOverride(t *testing.T) {
	h, gen, sub := testSetup(t)
	ctx := context.Background()
	seedCreds(t, h)

	gen.records = testRecords("elsewhere")
	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))

	result, _ := h.HandleSubmit(ctx, makeRequest(map[string]any{
		"id":      gen.records[0].ID,
		"project": "shuttle",
	}))
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	if sub.creds.Project != "shuttle" {
		t.Errorf("project = %q, want call-level override", sub.creds.Project)
	}
	if sub.creds.Organization != "acme" || sub.creds.PAT != "s3cr3t" {
		t.Errorf("unoverridden fields changed: %+v", sub.creds)
	}

	stored, err := h.store.Credentials()
	if err != nil {
		t.Fatalf("read credentials: %v", err)
	}
	if stored.Project != "rocket" {
		t.Errorf("stored project = %q, an override must not be persisted", stored.Project)
	}
}

func TestHandleSubmit_UnknownID(t *testing.T) {
	h, _, _ := testSetup(t)
	seedCreds(t, h)

	result, _ := h.HandleSubmit(context.Background(), makeRequest(map[string]any{"id": "nope"}))
	if !result.IsError {
		t.Fatal("expected error result for unknown record")
	}
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleSubmit_FailureAllowsRetry(t *testing.T) {
	h, gen, sub := testSetup(t)
	ctx := context.Background()
	seedCreds(t, h)

	gen.records = testRecords("flaky")
	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))
	id := gen.records[0].ID

	sub.err = errors.NewSubmissionFailed("transient")
	result, _ := h.HandleSubmit(ctx, makeRequest(map[string]any{"id": id}))
	if !result.IsError {
		t.Fatal("expected error result for failed submission")
	}
	assertErrorCode(t, result, "SUBMISSION_FAILED")

	sub.err = nil
	result, _ = h.HandleSubmit(ctx, makeRequest(map[string]any{"id": id}))
	if result.IsError {
		t.Fatalf("retry should succeed, got: %v", extractErrorMessage(result))
	}
}

func TestHandleSubmit_SucceededRefused(t *testing.T) {
	h, gen, sub := testSetup(t)
	ctx := context.Background()
	seedCreds(t, h)

	gen.records = testRecords("done")
	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))
	id := gen.records[0].ID

	h.HandleSubmit(ctx, makeRequest(map[string]any{"id": id}))
	sub.called = false

	result, _ := h.HandleSubmit(ctx, makeRequest(map[string]any{"id": id}))
	if !result.IsError {
		t.Fatal("expected error result for duplicate submission")
	}
	assertErrorCode(t, result, "CONFLICT")
	if sub.called {
		t.Error("submitter must not be called again for a succeeded record")
	}
}

// TestHandleList tests the workitem_list handler.
func TestHandleList(t *testing.T) {
	h, gen, _ := testSetup(t)
	ctx := context.Background()
	seedCreds(t, h)

	result, _ := h.HandleList(ctx, makeRequest(nil))
	var empty ListResponse
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &empty); err != nil {
		t.Fatalf("failed to unmarshal list result: %v", err)
	}
	if empty.Count != 0 {
		t.Errorf("count = %d, want 0 before any run", empty.Count)
	}

	gen.records = testRecords("one", "two")
	h.HandleGenerate(ctx, makeRequest(map[string]any{"notes": "n", "kind": "Task"}))
	h.HandleSubmit(ctx, makeRequest(map[string]any{"id": gen.records[0].ID}))

	result, _ = h.HandleList(ctx, makeRequest(nil))
	var output ListResponse
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal list result: %v", err)
	}
	if output.Count != 2 {
		t.Fatalf("count = %d, want 2", output.Count)
	}
	if output.Entries[0].Status != "succeeded" || output.Entries[0].Link == "" {
		t.Errorf("first entry = %+v, want succeeded with link", output.Entries[0])
	}
	if output.Entries[1].Status != "idle" {
		t.Errorf("second entry status = %q, want idle", output.Entries[1].Status)
	}
}

// --- registry ---

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 3 {
		t.Fatalf("len(names) = %d, want 3", len(names))
	}
	want := map[string]bool{"workitem_generate": true, "workitem_submit": true, "workitem_list": true}
	for _, name := range names {
		if !want[name] {
			t.Errorf("unexpected tool name %q", name)
		}
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"workitem_list", "bogus_tool"})
	if len(unknown) != 1 || unknown[0] != "bogus_tool" {
		t.Errorf("unknown = %v, want [bogus_tool]", unknown)
	}
}

func TestNewServer_DisabledToolsExcluded(t *testing.T) {
	h, _, _ := testSetup(t)
	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"workitem_submit"}

	s := NewServer(h, cfg, "test")
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
}

// --- helpers ---

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
