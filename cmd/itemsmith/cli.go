package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yuripa07/itemsmith/internal/config"
	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/generate"
	"github.com/yuripa07/itemsmith/internal/prefs"
	"github.com/yuripa07/itemsmith/internal/session"
	"github.com/yuripa07/itemsmith/internal/tracker"
	"github.com/yuripa07/itemsmith/internal/web"
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

// cliDeps holds the wiring shared by CLI commands. The generator is
// built lazily so commands that never generate work without an API key.
type cliDeps struct {
	cfg          *config.Config
	store        *prefs.Store
	newGenerator func(ctx context.Context) (Generator, error)
	submitter    Submitter
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps *cliDeps) *cli.App {
	app := &cli.App{
		Name:    "itemsmith",
		Usage:   "Turn meeting notes into tracked work items",
		Version: Version,
		Commands: []*cli.Command{
			generateCmd(deps),
			submitCmd(deps),
			configCmd(deps),
			serveCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// generateCmd creates the generate command.
func generateCmd(deps *cliDeps) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Turn notes (from stdin) into work item records, printed as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Required: true, Usage: "Work item kind for every record, e.g. Task, Bug, User Story"},
			&cli.StringFlag{Name: "instructions", Aliases: []string{"i"}, Usage: "System instructions for this run (defaults to the stored template)"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("notes must be piped via stdin"))
			}
			notes, err := readStdin()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			instructions := c.String("instructions")
			if instructions == "" {
				instructions, err = deps.store.InstructionTemplate()
				if err != nil {
					return outputError(err)
				}
			}

			gen, err := deps.newGenerator(c.Context)
			if err != nil {
				return outputError(err)
			}

			records, err := gen.Generate(c.Context, generate.Input{
				Notes:        notes,
				Kind:         c.String("kind"),
				Instructions: instructions,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(records)
		},
	}
}

// submitCmd creates the submit command.
func submitCmd(deps *cliDeps) *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Create work items from record JSON (stdin, flags, or --from file)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Record title"},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Record kind"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Record description (markdown)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "from", Usage: "Path to a JSON array of records; each is submitted on its own"},
		},
		Action: func(c *cli.Context) error {
			creds, err := deps.store.Credentials()
			if err != nil {
				return outputError(err)
			}

			if path := c.String("from"); path != "" {
				return submitFile(c.Context, deps, creds, path)
			}

			rec, err := recordFromInput(c)
			if err != nil {
				return outputError(err)
			}

			created, err := deps.submitter.Create(c.Context, creds, rec)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(created)
		},
	}
}

// submitFile submits a file of records one-by-one. A per-record failure
// does not stop the run; partial success is normal.
func submitFile(ctx context.Context, deps *cliDeps, creds tracker.Credentials, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return outputError(errors.NewInvalidRequest(fmt.Sprintf("read %s: %v", path, err)))
	}
	records, err := workitem.DecodeRecords(data)
	if err != nil {
		return outputError(err)
	}

	type result struct {
		Title string `json:"title"`
		Link  string `json:"link,omitempty"`
		Error string `json:"error,omitempty"`
	}

	results := make([]result, 0, len(records))
	failed := 0
	for _, rec := range records {
		created, err := deps.submitter.Create(ctx, creds, rec)
		if err != nil {
			failed++
			msg := err.Error()
			if iErr, ok := err.(*errors.ItemsmithError); ok {
				msg = iErr.Message
			}
			results = append(results, result{Title: rec.Title, Error: msg})
			continue
		}
		results = append(results, result{Title: rec.Title, Link: created.Link})
	}

	if err := outputJSON(map[string]any{
		"submitted": len(records) - failed,
		"failed":    failed,
		"results":   results,
	}); err != nil {
		return err
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d records failed", failed, len(records)), 1)
	}
	return nil
}

// recordFromInput builds a record from piped JSON or from flags.
func recordFromInput(c *cli.Context) (workitem.Record, error) {
	var rec workitem.Record

	if stdinHasData() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return rec, errors.NewInternal(err)
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return rec, errors.NewInvalidRequest(fmt.Sprintf("record JSON: %v", err))
		}
	} else {
		rec = workitem.Record{
			Title:       c.String("title"),
			Kind:        c.String("kind"),
			Description: c.String("description"),
			Tags:        workitem.ParseTags(c.String("tags")),
		}
	}

	if rec.ID == "" {
		rec.ID = workitem.NewID()
	}
	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

// configCmd creates the config command group.
func configCmd(deps *cliDeps) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or change stored credentials and the instruction template",
		Subcommands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Print the stored settings (the access token is masked)",
				Action: func(c *cli.Context) error {
					creds, err := deps.store.Credentials()
					if err != nil {
						return outputError(err)
					}
					template, err := deps.store.InstructionTemplate()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{
						"organization": creds.Organization,
						"project":      creds.Project,
						"pat_set":      creds.PAT != "",
						"configured":   creds.Configured(),
						"template":     template,
					})
				},
			},
			{
				Name:  "set",
				Usage: "Change one or more settings; omitted flags keep their value",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "organization", Aliases: []string{"o"}, Usage: "Azure DevOps organization"},
					&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Azure DevOps project"},
					&cli.StringFlag{Name: "pat", Usage: "Personal access token (stored in plain text)"},
					&cli.StringFlag{Name: "template", Usage: "Instruction template for generation runs"},
				},
				Action: func(c *cli.Context) error {
					if c.IsSet("organization") || c.IsSet("project") || c.IsSet("pat") {
						creds, err := deps.store.Credentials()
						if err != nil {
							return outputError(err)
						}
						if c.IsSet("organization") {
							creds.Organization = c.String("organization")
						}
						if c.IsSet("project") {
							creds.Project = c.String("project")
						}
						if c.IsSet("pat") {
							creds.PAT = c.String("pat")
						}
						if err := deps.store.SetCredentials(creds); err != nil {
							return outputError(err)
						}
					}
					if c.IsSet("template") {
						if err := deps.store.SetInstructionTemplate(c.String("template")); err != nil {
							return outputError(err)
						}
					}
					return outputJSON(map[string]string{"status": "saved"})
				},
			},
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(deps *cliDeps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (defaults to config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (defaults to config)"},
		},
		Action: func(c *cli.Context) error {
			bind := deps.cfg.Bind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := deps.cfg.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}

			gen, err := deps.newGenerator(c.Context)
			if err != nil {
				return outputError(err)
			}

			srv := web.NewServer(deps.cfg, deps.store, session.New(), gen, deps.submitter, Version, bind, port)
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if iErr, ok := err.(*errors.ItemsmithError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", iErr.Code, iErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
