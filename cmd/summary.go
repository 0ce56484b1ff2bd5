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

// summaryCmd holds the flags for the 'summary' subcommand.
type summaryCmd struct {
	project string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display a journal performance summary" }
func (*summaryCmd) Usage() string {
	return `tj summary [-project <name>]

  Displays per-outcome counts, the win rate over decided trades, the
  cumulative profit and loss, and the tracked time per project.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.project, "project", "", "Restrict the summary to one project.")
}

func (c *summaryCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	charts := app.store.Charts()
	sessions := app.store.Sessions()
	if c.project != "" {
		p, ok := findProject(app.store, c.project)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown project %q\n", c.project)
			return subcommands.ExitFailure
		}
		charts = filterByProject(charts, p.ID)
		sessions = filterSessionsByProject(sessions, p.ID)
	}

	sum := chartlog.Summarize(charts, sessions, app.store.Projects(), app.store.Config().AccountCurrency)

	var b strings.Builder
	b.WriteString("# Journal Summary\n\n")
	fmt.Fprintf(&b, "**%d** charts: %d wins, %d losses, %d breakeven, %d pending.\n\n",
		sum.Charts, sum.Wins, sum.Losses, sum.Breakevens, sum.Pending)
	if sum.Wins+sum.Losses > 0 {
		fmt.Fprintf(&b, "Win rate over decided trades: **%s**\n\n", sum.WinRate)
	}
	fmt.Fprintf(&b, "Cumulative P&L: **%s**\n\n", sum.TotalProfitLoss)

	if len(sum.Tracked) > 0 {
		b.WriteString("## Tracked time\n\n")
		b.WriteString("| Project | Time |\n")
		b.WriteString("|---|---|\n")
		for _, pt := range sum.Tracked {
			fmt.Fprintf(&b, "| %s | %s |\n", pt.ProjectName, time.Duration(pt.Seconds)*time.Second)
		}
	}

	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

func filterByProject(charts []chartlog.Chart, projectID string) []chartlog.Chart {
	var out []chartlog.Chart
	for _, c := range charts {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out
}

func filterSessionsByProject(sessions []chartlog.TimerSession, projectID string) []chartlog.TimerSession {
	var out []chartlog.TimerSession
	for _, s := range sessions {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out
}
