package workitem

import "google.golang.org/genai"

// ResponseSchema returns the machine-checkable shape constraint sent to the
// generative backend: an array of objects with title, kind, description, and
// tags. The same contract is enforced on the reply by DecodeRecords.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title": {
					Type:        genai.TypeString,
					Description: "A concise, descriptive title for the work item.",
				},
				"kind": {
					Type:        genai.TypeString,
					Description: "The type of work item, e.g. 'Task', 'Bug', 'User Story', 'Feature'.",
				},
				"description": {
					Type:        genai.TypeString,
					Description: "A detailed description of the work item, including acceptance criteria if applicable. Use markdown for formatting.",
				},
				"tags": {
					Type:        genai.TypeArray,
					Items:       &genai.Schema{Type: genai.TypeString},
					Description: "A list of relevant tags for categorization (e.g. 'API', 'UI', 'Backend').",
				},
			},
			Required: []string{"title", "kind", "description", "tags"},
		},
	}
}
