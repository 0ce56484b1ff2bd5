package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chartlog/chartlog"
	"github.com/google/subcommands"
)

// timerCmd holds the flags for the 'timer' subcommand.
type timerCmd struct {
	logDur  string
	project string
	theme   string
	symbol  string
	date    string
	remove  string
}

func (*timerCmd) Name() string     { return "timer" }
func (*timerCmd) Synopsis() string { return "list and record tracked time sessions" }
func (*timerCmd) Usage() string {
	return `tj timer [-log <duration> [-project <name>] [-theme <name>] [-symbol <sym>]] [-d <date>] [-rm <session-id>]

  Without flags, lists the recorded sessions. -log records a session
  ending now with the given duration, attributed to a project.

Usage Examples:
# Log 45 minutes of EURUSD review on the Swing project.
$ tj timer -log 45m -project Swing -symbol EURUSD

`
}

func (c *timerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.logDur, "log", "", "Record a session of this duration, ending now (e.g. 45m, 1h30m).")
	f.StringVar(&c.project, "project", "", "Project to attribute the session to (defaults to General).")
	f.StringVar(&c.theme, "theme", "", "Theme within the project.")
	f.StringVar(&c.symbol, "symbol", "", "Symbol studied during the session.")
	f.StringVar(&c.date, "d", "", "Only list sessions of this day.")
	f.StringVar(&c.remove, "rm", "", "Delete the session with this id.")
}

func (c *timerCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	switch {
	case c.logDur != "":
		return c.logSession(app)

	case c.remove != "":
		if !app.store.DeleteSession(c.remove) {
			fmt.Fprintf(os.Stderr, "Error: unknown session %q\n", c.remove)
			return subcommands.ExitFailure
		}
		fmt.Printf("Deleted session %s\n", c.remove)

	default:
		sessions := app.store.Sessions()
		if c.date != "" {
			sessions = chartlog.SessionsOn(sessions, c.date)
		}
		var b strings.Builder
		b.WriteString("| Day | Project | Symbol | Duration | Session id |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, s := range sessions {
			dur := time.Duration(s.DurationSeconds) * time.Second
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				s.Day, app.store.ProjectName(s.ProjectID), s.Symbol, dur, s.ID)
		}
		printMarkdown(b.String())
	}
	return subcommands.ExitSuccess
}

func (c *timerCmd) logSession(app *app) subcommands.ExitStatus {
	dur, err := time.ParseDuration(c.logDur)
	if err != nil || dur <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid duration %q\n", c.logDur)
		return subcommands.ExitUsageError
	}

	projectID := chartlog.DefaultProjectID
	if c.project != "" {
		p, ok := findProject(app.store, c.project)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown project %q\n", c.project)
			return subcommands.ExitFailure
		}
		projectID = p.ID
	}
	themeID := ""
	if c.theme != "" {
		t, ok := findTheme(app.store, projectID, c.theme)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown theme %q\n", c.theme)
			return subcommands.ExitFailure
		}
		themeID = t.ID
	}

	end := time.Now().UTC()
	sess := app.store.AddSession(chartlog.NewTimerSession(projectID, themeID, c.symbol, end.Add(-dur), end))
	fmt.Printf("Logged %s on %s (session %s)\n", dur, app.store.ProjectName(projectID), sess.ID)
	return subcommands.ExitSuccess
}
