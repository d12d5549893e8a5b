package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/generate"
	"github.com/yuripa07/itemsmith/internal/prefs"
	"github.com/yuripa07/itemsmith/internal/session"
	"github.com/yuripa07/itemsmith/internal/tracker"
	"github.com/yuripa07/itemsmith/internal/workitem"
)

// Generator runs one text-to-records transduction.
type Generator interface {
	Generate(ctx context.Context, input generate.Input) ([]workitem.Record, error)
}

// Submitter creates one remote work item from one record.
type Submitter interface {
	Create(ctx context.Context, creds tracker.Credentials, rec workitem.Record) (*tracker.CreatedItem, error)
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store     *prefs.Store
	session   *session.Session
	generator Generator
	submitter Submitter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *prefs.Store, sess *session.Session, gen Generator, sub Submitter) *Handlers {
	return &Handlers{store: store, session: sess, generator: gen, submitter: sub}
}

// Request types for each tool

// GenerateRequest represents the arguments for workitem_generate.
type GenerateRequest struct {
	Notes        string `json:"notes"`
	Kind         string `json:"kind"`
	Instructions string `json:"instructions,omitempty"`
}

// SubmitRequest represents the arguments for workitem_submit.
// Credential fields, when present, override the stored slot for this
// call only.
type SubmitRequest struct {
	ID           string `json:"id"`
	Organization string `json:"organization,omitempty"`
	Project      string `json:"project,omitempty"`
	PAT          string `json:"pat,omitempty"`
}

// Response types

// GenerateResponse is the workitem_generate result payload.
type GenerateResponse struct {
	Records []workitem.Record `json:"records"`
	Count   int               `json:"count"`
}

// SubmitResponse is the workitem_submit result payload.
type SubmitResponse struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}

// ListEntry pairs a record with its submission state.
type ListEntry struct {
	Record workitem.Record `json:"record"`
	Status string          `json:"status"`
	Link   string          `json:"link,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ListResponse is the workitem_list result payload.
type ListResponse struct {
	Entries []ListEntry `json:"entries"`
	Count   int         `json:"count"`
}

// Handler implementations

// HandleGenerate handles the workitem_generate tool call. A successful
// run replaces the working set wholesale; a failed run leaves it intact.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GenerateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	instructions := input.Instructions
	if instructions == "" {
		instructions, err = h.store.InstructionTemplate()
		if err != nil {
			return errorResult(err), nil
		}
	}

	if err := h.session.BeginGeneration(); err != nil {
		return errorResult(err), nil
	}

	records, err := h.generator.Generate(ctx, generate.Input{
		Notes:        input.Notes,
		Kind:         input.Kind,
		Instructions: instructions,
	})
	if err != nil {
		h.session.FailGeneration()
		return errorResult(err), nil
	}
	h.session.FinishGeneration(records)

	return successResult(GenerateResponse{Records: records, Count: len(records)})
}

// HandleSubmit handles the workitem_submit tool call. Credentials are
// read once at call start; the outcome touches only the named record.
func (h *Handlers) HandleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SubmitRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	creds, err := h.store.Credentials()
	if err != nil {
		return errorResult(err), nil
	}
	if input.Organization != "" {
		creds.Organization = input.Organization
	}
	if input.Project != "" {
		creds.Project = input.Project
	}
	if input.PAT != "" {
		creds.PAT = input.PAT
	}
	if !creds.Configured() {
		return errorResult(errors.NewNotConfigured()), nil
	}

	rec, err := h.session.BeginSubmit(input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	created, err := h.submitter.Create(ctx, creds, rec)
	if err != nil {
		msg := "an unknown error occurred"
		if iErr, ok := err.(*errors.ItemsmithError); ok {
			msg = iErr.Message
		}
		h.session.FailSubmit(input.ID, msg)
		return errorResult(err), nil
	}
	h.session.CompleteSubmit(input.ID, created.Link)

	return successResult(SubmitResponse{ID: input.ID, Link: created.Link})
}

// HandleList handles the workitem_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := h.session.Entries()
	out := make([]ListEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ListEntry{
			Record: e.Record,
			Status: string(e.State.Status),
			Link:   e.State.RemoteLink,
			Error:  e.State.Error,
		})
	}
	return successResult(ListResponse{Entries: out, Count: len(out)})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if iErr, ok := err.(*errors.ItemsmithError); ok {
		errorObj := map[string]any{
			"code":    iErr.Code,
			"message": iErr.Message,
			"status":  iErr.Status,
		}
		if iErr.Code != errors.ErrInternal && iErr.Details != nil {
			errorObj["details"] = iErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
