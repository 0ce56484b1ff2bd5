package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/chartlog/chartlog"
	"github.com/google/subcommands"
)

// chartsCmd holds the flags for the 'charts' subcommand.
type chartsCmd struct {
	query   string
	project string
	outcome string
	date    string
	head    int
	tail    int
}

func (*chartsCmd) Name() string     { return "charts" }
func (*chartsCmd) Synopsis() string { return "list the charts in the journal" }
func (*chartsCmd) Usage() string {
	return `tj charts [-project <name>] [-outcome <o>] [-d <date>] [-head <n>] [-tail <n>] [-q <jsonpath>]

  Lists charts from the active folder, with options for filtering and
  limiting the output. With -q, evaluates a JSONPath expression over
  the chart list and prints the result as JSON.

Usage Examples:
# All winning trades.
$ tj charts -outcome win

# Just the symbols, via JSONPath.
$ tj charts -q '$[*].symbol'

`
}

func (c *chartsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.query, "q", "", "JSONPath expression evaluated over the chart list.")
	f.StringVar(&c.project, "project", "", "Only charts of this project.")
	f.StringVar(&c.outcome, "outcome", "", "Only charts with this outcome.")
	f.StringVar(&c.date, "d", "", "Only charts of this trading day.")
	f.IntVar(&c.head, "head", 0, "Show only the first N charts.")
	f.IntVar(&c.tail, "tail", 0, "Show only the last N charts.")
}

func (c *chartsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.head > 0 && c.tail > 0 {
		fmt.Fprintln(os.Stderr, "Error: -head and -tail flags cannot be used together.")
		return subcommands.ExitUsageError
	}
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	charts, status := c.filter(app)
	if status != subcommands.ExitSuccess {
		return status
	}
	if c.head > 0 && len(charts) > c.head {
		charts = charts[:c.head]
	}
	if c.tail > 0 && len(charts) > c.tail {
		charts = charts[len(charts)-c.tail:]
	}

	if c.query != "" {
		return c.evalQuery(charts)
	}

	var b strings.Builder
	b.WriteString("| Day | Symbol | TF | Direction | Outcome | R:R | Project | Theme | File |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
	for _, ch := range charts {
		rr := ""
		if ch.RiskReward != nil {
			rr = ch.RiskReward.String()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			ch.TradingDay, ch.Symbol, ch.Timeframe, ch.Direction, ch.Outcome, rr,
			app.store.ProjectName(ch.ProjectID), app.store.ThemeName(ch.ThemeID), ch.ImageFileName)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

func (c *chartsCmd) filter(app *app) ([]chartlog.Chart, subcommands.ExitStatus) {
	var projectID string
	if c.project != "" {
		p, ok := findProject(app.store, c.project)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown project %q\n", c.project)
			return nil, subcommands.ExitFailure
		}
		projectID = p.ID
	}
	var charts []chartlog.Chart
	for _, ch := range app.store.Charts() {
		if projectID != "" && ch.ProjectID != projectID {
			continue
		}
		if c.outcome != "" && ch.Outcome != chartlog.Outcome(c.outcome) {
			continue
		}
		if c.date != "" && ch.TradingDay.String() != c.date {
			continue
		}
		charts = append(charts, ch)
	}
	return charts, subcommands.ExitSuccess
}

// evalQuery evaluates the JSONPath expression over the persisted shape
// of the chart list, so queries see the same field names as the
// charts-index.json document.
func (c *chartsCmd) evalQuery(charts []chartlog.Chart) subcommands.ExitStatus {
	raw, err := json.Marshal(charts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	result, err := jsonpath.Get(c.query, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error evaluating query %q: %v\n", c.query, err)
		return subcommands.ExitUsageError
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(string(out))
	return subcommands.ExitSuccess
}

// showCmd holds the flags for the 'show' subcommand.
type showCmd struct {
	out string
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "show one chart's metadata, optionally exporting its image" }
func (*showCmd) Usage() string {
	return `tj show [-o <file>] <chart-id>

  Prints the full metadata of one chart. With -o, also copies the
  chart image out of the storage folder.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "Write the chart image to this file.")
}

func (c *showCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: show takes exactly one chart id.")
		return subcommands.ExitUsageError
	}
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	chart, ok := app.store.Chart(f.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown chart %q\n", f.Arg(0))
		return subcommands.ExitFailure
	}

	out, err := json.MarshalIndent(chart, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(string(out))

	if c.out != "" {
		img, err := app.engine.ReadChartImage(chart)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading image: %v\n", err)
			return subcommands.ExitFailure
		}
		if img == nil {
			fmt.Fprintln(os.Stderr, "Error: no image available for this chart.")
			return subcommands.ExitFailure
		}
		if err := os.WriteFile(c.out, img, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.out, err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Image written to %s\n", c.out)
	}
	return subcommands.ExitSuccess
}
