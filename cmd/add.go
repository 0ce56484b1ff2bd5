package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chartlog/chartlog"
	"github.com/chartlog/chartlog/date"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// addCmd holds the flags for the 'add' subcommand.
type addCmd struct {
	image     string
	symbol    string
	timeframe string
	session   string
	direction string
	setup     string
	entry     string
	stop      string
	target    string
	outcome   string
	pl        string
	tags      string
	notes     string
	project   string
	theme     string
	day       string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a chart screenshot with its trade metadata" }
func (*addCmd) Usage() string {
	return `tj add -image <file> [-symbol <sym>] [-tf <timeframe>] [-session <s>] [-direction long|short] [-setup <s>] [-entry <price>] [-stop <price>] [-target <price>] [-outcome win|loss|breakeven|pending] [-pl <amount>] [-tags <a,b>] [-notes <text>] [-project <name>] [-theme <name>] [-d <date>]

  Adds a chart to the journal. The image is copied into the active
  folder under charts/<project>/<theme>/ and named from the configured
  template. The name is assigned once and never regenerated.

Usage Examples:
# A winning EURUSD breakout on H1.
$ tj add -image shot.png -symbol EURUSD -tf H1 -outcome win -entry 1.1000 -stop 1.0950 -target 1.1100

`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.image, "image", "", "Path to the chart screenshot (required)")
	f.StringVar(&c.symbol, "symbol", "", "Instrument symbol")
	f.StringVar(&c.timeframe, "tf", "", "Timeframe (M1..W1)")
	f.StringVar(&c.session, "session", "", "Trading session")
	f.StringVar(&c.direction, "direction", "", "Trade direction (long, short)")
	f.StringVar(&c.setup, "setup", "", "Setup name")
	f.StringVar(&c.entry, "entry", "", "Entry price")
	f.StringVar(&c.stop, "stop", "", "Stop price")
	f.StringVar(&c.target, "target", "", "Target price")
	f.StringVar(&c.outcome, "outcome", "", "Outcome (win, loss, breakeven, pending)")
	f.StringVar(&c.pl, "pl", "", "Realized profit or loss, in the account currency")
	f.StringVar(&c.tags, "tags", "", "Comma-separated tags")
	f.StringVar(&c.notes, "notes", "", "Free-form notes")
	f.StringVar(&c.project, "project", "", "Project name (defaults to General)")
	f.StringVar(&c.theme, "theme", "", "Theme name within the project")
	f.StringVar(&c.day, "d", "", "Trading day (defaults to today)")
}

func (c *addCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.image == "" {
		fmt.Fprintln(os.Stderr, "Error: -image is required.")
		return subcommands.ExitUsageError
	}
	img, err := os.ReadFile(c.image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading image: %v\n", err)
		return subcommands.ExitFailure
	}

	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	chart, status := c.buildChart(app)
	if status != subcommands.ExitSuccess {
		return status
	}

	ext := filepath.Ext(c.image)
	chart, err = app.engine.CreateChart(chart, img, ext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Added chart %s as %s\n", chart.ID, chart.ImageFileName)
	return subcommands.ExitSuccess
}

// buildChart assembles the chart entity from the flags, resolving
// project and theme names against the loaded state.
func (c *addCmd) buildChart(app *app) (chartlog.Chart, subcommands.ExitStatus) {
	chart := chartlog.Chart{
		Symbol:    c.symbol,
		Timeframe: c.timeframe,
		Session:   c.session,
		Direction: chartlog.Direction(c.direction),
		Setup:     c.setup,
		Outcome:   chartlog.Outcome(c.outcome),
		Notes:     c.notes,
	}

	if c.day != "" {
		day, err := date.Parse(c.day)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return chart, subcommands.ExitUsageError
		}
		chart.TradingDay = day
	} else {
		chart.TradingDay = date.Today()
	}

	for _, spec := range []struct {
		value string
		dst   **decimal.Decimal
		name  string
	}{
		{c.entry, &chart.Entry, "entry"},
		{c.stop, &chart.Stop, "stop"},
		{c.target, &chart.Target, "target"},
	} {
		if spec.value == "" {
			continue
		}
		d, err := decimal.NewFromString(spec.value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing %s price %q: %v\n", spec.name, spec.value, err)
			return chart, subcommands.ExitUsageError
		}
		*spec.dst = &d
	}
	chart.ComputeRiskReward()

	if c.pl != "" {
		m, err := chartlog.ParseMoney(c.pl, app.store.Config().AccountCurrency)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return chart, subcommands.ExitUsageError
		}
		chart.ProfitLoss = &m
	}

	for _, tag := range strings.Split(c.tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			chart.AddTag(tag)
		}
	}

	if c.project != "" {
		p, ok := findProject(app.store, c.project)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown project %q. Create it with 'tj projects -add'.\n", c.project)
			return chart, subcommands.ExitFailure
		}
		chart.ProjectID = p.ID
	}
	if c.theme != "" {
		projectID := chart.ProjectID
		if projectID == "" {
			projectID = chartlog.DefaultProjectID
		}
		t, ok := findTheme(app.store, projectID, c.theme)
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown theme %q in project. Create it with 'tj themes -add'.\n", c.theme)
			return chart, subcommands.ExitFailure
		}
		chart.ThemeID = t.ID
	}
	return chart, subcommands.ExitSuccess
}

func findProject(store *chartlog.StateStore, name string) (chartlog.Project, bool) {
	for _, p := range store.Projects() {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return chartlog.Project{}, false
}

func findTheme(store *chartlog.StateStore, projectID, name string) (chartlog.Theme, bool) {
	for _, t := range store.Themes() {
		if t.ProjectID == projectID && strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return chartlog.Theme{}, false
}
