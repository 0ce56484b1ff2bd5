package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chartlog/chartlog"
	"github.com/chartlog/chartlog/cloudcfg"
	"github.com/google/subcommands"
)

// configCmd holds the flags for the 'config' subcommand.
type configCmd struct {
	template string
	currency string
	symbols  string
	tags     string
}

func (*configCmd) Name() string     { return "config" }
func (*configCmd) Synopsis() string { return "show or edit the folder configuration, sync it to the cloud" }
func (*configCmd) Usage() string {
	return `tj config [push|pull] [-template <t>] [-currency <code>] [-symbols <a,b>] [-tags <a,b>]

  Without arguments, prints the active folder's configuration. Flags
  edit it in place. 'push' uploads the configuration to the configured
  S3-compatible bucket, 'pull' replaces the local configuration with
  the remote copy. Only the configuration syncs to the cloud; journal
  data and chart images never leave the local folders.

  The cloud endpoint is read from CHARTLOG_S3_ENDPOINT,
  CHARTLOG_S3_ACCESS_KEY, CHARTLOG_S3_SECRET_KEY and CHARTLOG_S3_BUCKET.
`
}

func (c *configCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.template, "template", "", "File name template, e.g. {symbol}_{timeframe}_{outcome}.")
	f.StringVar(&c.currency, "currency", "", "Account currency (ISO 4217).")
	f.StringVar(&c.symbols, "symbols", "", "Comma-separated symbol vocabulary.")
	f.StringVar(&c.tags, "tags", "", "Comma-separated common tags.")
}

func (c *configCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer app.Close()

	switch f.Arg(0) {
	case "push":
		return c.push(ctx, app)
	case "pull":
		return c.pull(ctx, app)
	case "":
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown config action %q, expected push or pull.\n", f.Arg(0))
		return subcommands.ExitUsageError
	}

	edited := false
	app.store.PatchConfig(func(cfg *chartlog.AppConfig) {
		if c.template != "" {
			cfg.FileNameTemplate = c.template
			edited = true
		}
		if c.currency != "" {
			cfg.AccountCurrency = c.currency
			edited = true
		}
		if c.symbols != "" {
			cfg.Symbols = splitList(c.symbols)
			edited = true
		}
		if c.tags != "" {
			cfg.CommonTags = splitList(c.tags)
			edited = true
		}
	})

	if !edited {
		out, err := json.MarshalIndent(app.store.Config(), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Println(string(out))
	}
	return subcommands.ExitSuccess
}

func (c *configCmd) push(ctx context.Context, app *app) subcommands.ExitStatus {
	client, status := cloudClient()
	if status != subcommands.ExitSuccess {
		return status
	}
	if err := client.Push(ctx, app.store.Config()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("Configuration pushed.")
	return subcommands.ExitSuccess
}

func (c *configCmd) pull(ctx context.Context, app *app) subcommands.ExitStatus {
	client, status := cloudClient()
	if status != subcommands.ExitSuccess {
		return status
	}
	cfg, err := client.Pull(ctx)
	if err != nil {
		if errors.Is(err, cloudcfg.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "Error: no remote configuration yet, push one first.")
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	app.store.PatchConfig(func(local *chartlog.AppConfig) { *local = cfg })
	fmt.Println("Configuration pulled.")
	return subcommands.ExitSuccess
}

func cloudClient() (*cloudcfg.Client, subcommands.ExitStatus) {
	opts, err := cloudcfg.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, subcommands.ExitUsageError
	}
	client, err := cloudcfg.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	return client, subcommands.ExitSuccess
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
