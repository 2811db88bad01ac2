// Package cli implements screenctl, the in-process command line for the
// screening engine: load the source lists, screen names, inspect status,
// and manage the persisted snapshot.  The CLI shares every code path with
// the API server; only the transport differs.
package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkweli/amlscreen/internal/application/registry"
	"github.com/mkweli/amlscreen/internal/application/screening"
	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mkweli/amlscreen/internal/infrastructure/monitoring/prometheus"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App carries the initialized dependencies through the command tree.
type App struct {
	Config       *config.Config
	Logger       logging.Logger
	Repo         *registry.Repository
	Matcher      *screening.Matcher
	Orchestrator *screening.Orchestrator
	JSONOutput   bool
}

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	dataDir    string
	verbose    bool
	jsonOut    bool
}

// NewRootCommand builds the screenctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	app := &App{}

	cmd := &cobra.Command{
		Use:     "screenctl",
		Short:   "Sanctions screening engine CLI",
		Long:    "screenctl loads the UN, UK, OFAC and EU consolidated sanctions lists\nand screens names against them locally, with no server required.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(app, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: env + built-in defaults)")
	pf.StringVar(&opts.dataDir, "data-dir", "", "override the sanctions data directory")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	cmd.AddCommand(
		newLoadCmd(app),
		newScreenCmd(app),
		newStatusCmd(app),
		newCacheCmd(app),
	)
	return cmd
}

func initApp(app *App, opts *rootOptions) error {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}
	if opts.dataDir != "" {
		cfg.Sources.DataDir = opts.dataDir
	}

	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	metrics := prommetrics.New()
	repo := registry.New(cfg, logger, metrics)
	matcher := screening.NewMatcher(cfg.Matching, repo, logger, metrics)

	app.Config = cfg
	app.Logger = logger
	app.Repo = repo
	app.Matcher = matcher
	app.Orchestrator = screening.NewOrchestrator(cfg.Screening, matcher, logger, metrics)
	app.JSONOutput = opts.jsonOut
	return nil
}

// printResult writes data as indented JSON when --json is set, otherwise
// through the provided text renderer.
func printResult(cmd *cobra.Command, app *App, data any, text func() string) error {
	if app.JSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(text(), "\n"))
	return nil
}

// formatTable renders headers and rows as an aligned ASCII table.
func formatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(cell)
			sb.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	seps := make([]string, len(headers))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", w)
	}
	writeRow(seps)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}
