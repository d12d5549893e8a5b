// Package generate is the text-to-records transducer: it turns free-text
// meeting notes or card details into structured work-item records through
// the Gemini API, constrained by the workitem response schema.
package generate

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/workitem"
)

// Temperature biases the model toward deterministic structured output.
const Temperature = 0.2

// Input contains the parameters for one generation run.
type Input struct {
	// Notes is the raw meeting notes or card text. Required.
	Notes string

	// Kind is the work-item type the generated items should use. Required.
	Kind string

	// Instructions is the persisted instruction template, applied as a
	// system-level directive, never concatenated into the prompt.
	Instructions string
}

// backend abstracts the generative call so tests can stub the network.
type backend interface {
	generate(ctx context.Context, prompt, system string) (string, error)
}

// Generator builds prompts, calls the generative backend, and validates
// replies into work-item records.
type Generator struct {
	backend backend
}

// New creates a Generator backed by the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generative API key is required (set GEMINI_API_KEY)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Generator{backend: &genaiBackend{client: client, model: model}}, nil
}

// Generate runs one transduction. On success the returned records are in
// backend order, untouched. Any backend or format failure returns no
// records; there are no partial results, and nothing persisted is mutated.
func (g *Generator) Generate(ctx context.Context, input Input) ([]workitem.Record, error) {
	if strings.TrimSpace(input.Notes) == "" {
		return nil, errors.NewInvalidRequest("notes text is required")
	}
	if strings.TrimSpace(input.Kind) == "" {
		return nil, errors.NewInvalidRequest("work-item kind is required")
	}

	reply, err := g.backend.generate(ctx, buildPrompt(input), strings.TrimSpace(input.Instructions))
	if err != nil {
		return nil, errors.NewGenerationFailed(err)
	}

	return parseReply(reply)
}

// buildPrompt composes the single natural-language prompt embedding the
// notes and the kind directive.
func buildPrompt(input Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A specific instruction for this request is: %q. Please prioritize this.\n\n---\n\n",
		"Every generated item must use the work item kind "+strings.TrimSpace(input.Kind))

	b.WriteString(`Based on the following meeting notes, identify all actionable tasks, user stories, bugs, or features.
For each item, provide a clear title, a detailed description, a suitable work item kind, and relevant tags.
Ensure the description contains enough detail for a developer or team member to start work.

Notes:
---
`)
	b.WriteString(input.Notes)
	b.WriteString("\n---\n")

	return b.String()
}

// parseReply validates the backend reply into records.
func parseReply(reply string) ([]workitem.Record, error) {
	return workitem.DecodeRecords([]byte(strings.TrimSpace(reply)))
}

// genaiBackend is the production backend over the Gemini API.
type genaiBackend struct {
	client *genai.Client
	model  string
}

func (b *genaiBackend) generate(ctx context.Context, prompt, system string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](Temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   workitem.ResponseSchema(),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("empty reply from model %s", b.model)
	}
	return text, nil
}
