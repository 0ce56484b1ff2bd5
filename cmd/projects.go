package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chartlog/chartlog"
	"github.com/google/subcommands"
)

// projectsCmd holds the flags for the 'projects' subcommand.
type projectsCmd struct {
	add     string
	desc    string
	remove  string
	rename  string
	newName string
}

func (*projectsCmd) Name() string     { return "projects" }
func (*projectsCmd) Synopsis() string { return "list and manage projects" }
func (*projectsCmd) Usage() string {
	return `tj projects [-add <name> [-desc <text>]] [-rename <name> -to <new name>] [-rm <name>]

  Without flags, lists the projects of the active folder. Deleting a
  project also deletes its themes; its charts keep their references and
  show up under "Unknown". The General project cannot be deleted.
`
}

func (c *projectsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.add, "add", "", "Create a project with this name.")
	f.StringVar(&c.desc, "desc", "", "Description for -add.")
	f.StringVar(&c.rename, "rename", "", "Rename this project (requires -to).")
	f.StringVar(&c.newName, "to", "", "New name for -rename.")
	f.StringVar(&c.remove, "rm", "", "Delete the project with this name.")
}

func (c *projectsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	switch {
	case c.add != "":
		p, err := app.store.AddProject(c.add, c.desc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Created project %q (%s)\n", p.Name, p.ID)

	case c.rename != "":
		if c.newName == "" {
			fmt.Fprintln(os.Stderr, "Error: -rename requires -to.")
			return subcommands.ExitUsageError
		}
		p, ok := findProject(app.store, c.rename)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown project %q\n", c.rename)
			return subcommands.ExitFailure
		}
		p.Name = c.newName
		if err := app.store.UpdateProject(p); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Renamed project to %q\n", c.newName)

	case c.remove != "":
		p, ok := findProject(app.store, c.remove)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown project %q\n", c.remove)
			return subcommands.ExitFailure
		}
		if err := app.store.DeleteProject(p.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Deleted project %q and its themes\n", p.Name)

	default:
		var b strings.Builder
		b.WriteString("| Project | Description | Themes | Charts |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, p := range app.store.Projects() {
			themes, charts := 0, 0
			for _, t := range app.store.Themes() {
				if t.ProjectID == p.ID {
					themes++
				}
			}
			for _, ch := range app.store.Charts() {
				if ch.ProjectID == p.ID {
					charts++
				}
			}
			fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", p.Name, p.Description, themes, charts)
		}
		printMarkdown(b.String())
	}
	return subcommands.ExitSuccess
}

// themesCmd holds the flags for the 'themes' subcommand.
type themesCmd struct {
	project string
	add     string
	desc    string
	remove  string
}

func (*themesCmd) Name() string     { return "themes" }
func (*themesCmd) Synopsis() string { return "list and manage themes within a project" }
func (*themesCmd) Usage() string {
	return `tj themes [-project <name>] [-add <name> [-desc <text>]] [-rm <name>]

  Without flags, lists every theme. Deleting a theme keeps its charts
  and unlinks them from the theme.
`
}

func (c *themesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Project the theme belongs to (defaults to General).")
	f.StringVar(&c.add, "add", "", "Create a theme with this name.")
	f.StringVar(&c.desc, "desc", "", "Description for -add.")
	f.StringVar(&c.remove, "rm", "", "Delete the theme with this name.")
}

func (c *themesCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	projectID := ""
	if c.project != "" {
		p, ok := findProject(app.store, c.project)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown project %q\n", c.project)
			return subcommands.ExitFailure
		}
		projectID = p.ID
	}

	switch {
	case c.add != "":
		if projectID == "" {
			projectID = chartlog.DefaultProjectID
		}
		t, err := app.store.AddTheme(projectID, c.add, c.desc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Created theme %q (%s)\n", t.Name, t.ID)

	case c.remove != "":
		if projectID == "" {
			projectID = chartlog.DefaultProjectID
		}
		t, ok := findTheme(app.store, projectID, c.remove)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown theme %q\n", c.remove)
			return subcommands.ExitFailure
		}
		if err := app.store.DeleteTheme(t.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Deleted theme %q, its charts are unlinked\n", t.Name)

	default:
		var b strings.Builder
		b.WriteString("| Theme | Project | Description |\n")
		b.WriteString("|---|---|---|\n")
		for _, t := range app.store.Themes() {
			if projectID != "" && t.ProjectID != projectID {
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", t.Name, app.store.ProjectName(t.ProjectID), t.Description)
		}
		printMarkdown(b.String())
	}
	return subcommands.ExitSuccess
}
