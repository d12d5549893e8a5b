package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

var generateToolDef = mcp.NewTool("workitem_generate",
	mcp.WithDescription("Turn free-text meeting notes into structured work item records. Replaces the current working set; records are held in memory until submitted individually with workitem_submit."),
	mcp.WithString("notes",
		mcp.Required(),
		mcp.Description("Free-text notes to transform into work items."),
	),
	mcp.WithString("kind",
		mcp.Required(),
		mcp.Description("Work item kind to request for every record, e.g. Task, Bug, User Story, Feature."),
	),
	mcp.WithString("instructions",
		mcp.Description("Extra system instructions for this run. Defaults to the stored instruction template."),
	),
)

var submitToolDef = mcp.NewTool("workitem_submit",
	mcp.WithDescription("Create one work item in the configured Azure DevOps project from a record produced by workitem_generate. Failed submissions may be retried; a succeeded record is not resubmitted."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("ID of the record to submit, as returned by workitem_generate."),
	),
	mcp.WithString("organization",
		mcp.Description("Azure DevOps organization, overriding the stored one for this call."),
	),
	mcp.WithString("project",
		mcp.Description("Azure DevOps project, overriding the stored one for this call."),
	),
	mcp.WithString("pat",
		mcp.Description("Personal access token, overriding the stored one for this call."),
	),
)

var listToolDef = mcp.NewTool("workitem_list",
	mcp.WithDescription("List the current working set of generated records with their per-record submission state."),
)
