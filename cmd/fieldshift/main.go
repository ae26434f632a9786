package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fieldshift/fieldshift/internal/batch"
	"github.com/fieldshift/fieldshift/internal/config"
	"github.com/fieldshift/fieldshift/internal/container"
	"github.com/fieldshift/fieldshift/internal/inventory"
	"github.com/fieldshift/fieldshift/internal/rewrite"
	"github.com/fieldshift/fieldshift/internal/ui"
	"github.com/fieldshift/fieldshift/pkg/logger"
)

// Build-time variables
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global flags
var (
	cfgFile string
	noColor bool
	quiet   bool
	verbose bool
	output  string
)

// Global instances
var (
	cfg *config.Config
	out *ui.Output
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if out != nil {
			out.Error(err.Error())
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "fieldshift",
	Short: "Rewrite field references inside Power BI thin reports",
	Long: `fieldshift relocates a qualified field (Table.Field) across every
visual, filter, query and bookmark of a thin report, keeping the rest of
the container byte-for-byte intact. It can also reset multi-select "All"
slicers across a report.

Get started:
  fieldshift rewrite report.pbix "Sales.Qty" "Orders.Count"
  fieldshift rewrite ./reports "Sales.Qty" "Orders.Count" --model Model.pbix
  fieldshift slicers report.pbix`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip for completion and help commands
		if cmd.Name() == "completion" || cmd.Name() == "help" {
			return nil
		}

		// Initialize output
		format := ui.OutputFormat(output)
		out = ui.NewOutput(format, noColor, quiet)

		// Load config
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger.SetFormat(cfg.Log.Format)
		switch {
		case verbose:
			logger.SetLevel("debug")
		case quiet:
			logger.SetLevel("error")
		default:
			logger.SetLevel(cfg.Log.Level)
		}

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if output == "json" {
			_ = out.JSON(map[string]string{
				"version":   version,
				"commit":    commit,
				"buildTime": buildTime,
				"goVersion": runtime.Version(),
				"os":        runtime.GOOS,
				"arch":      runtime.GOARCH,
			})
			return
		}

		out.Title("fieldshift")
		out.KeyValue("Version", version)
		out.KeyValue("Commit", commit)
		out.KeyValue("Built", buildTime)
		out.KeyValue("Go", runtime.Version())
		out.KeyValue("OS/Arch", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH))
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for fieldshift.

To load completions:

Bash:
  $ source <(fieldshift completion bash)

Zsh:
  $ fieldshift completion zsh > "${fpath[1]}/_fieldshift"

Fish:
  $ fieldshift completion fish | source

PowerShell:
  PS> fieldshift completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			_ = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			_ = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			_ = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			_ = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [path] [old] [new]",
	Short: "Replace a qualified field across one or many reports",
	Long: `Replace every structural reference to old (Table.Field) with new
across a thin report's visuals, filters, queries, data transforms and
bookmarks. A directory path rewrites every *.pbix beneath it, excluding
the model container.

With missing arguments, an interactive form collects them.`,
	Example: `  # Interactive
  fieldshift rewrite

  # Single report
  fieldshift rewrite report.pbix "Sales.Qty" "Orders.Count"

  # Whole tree, eight workers
  fieldshift rewrite ./reports "Sales.Qty" "Orders.Count" --jobs 8`,
	Args: cobra.MaximumNArgs(3),
	RunE: runRewrite,
}

var slicersCmd = &cobra.Command{
	Use:   "slicers <path>",
	Short: "Reset multi-select \"All\" slicers",
	Long: `Clear the inverted-selection marker of every slicer that has no
explicit selection filter, so slicers reopen with nothing selected.
A directory path resets slicers in every *.pbix beneath it.`,
	Example: `  fieldshift slicers report.pbix
  fieldshift slicers ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runSlicers,
}

var fieldsCmd = &cobra.Command{
	Use:   "fields <file> [candidate...]",
	Short: "List the fields a report references",
	Long: `List the fields referenced by a report's projections (as Table.Field)
and filter expressions (as bare field names). With candidates, report which of them the file uses
instead (a bare field name matches any table). The listing is advisory:
it predicts what a rewrite would match without touching the file.`,
	Example: `  fieldshift fields report.pbix
  fieldshift fields report.pbix -o json
  fieldshift fields report.pbix Sales.Qty Margin`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFields,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage fieldshift configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("no configuration loaded")
		}
		return out.YAML(cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("no configuration loaded")
		}

		viper.Set(args[0], args[1])
		if err := viper.Unmarshal(cfg); err != nil {
			return fmt.Errorf("applying %s: %w", args[0], err)
		}

		configPath := cfgFile
		if configPath == "" {
			configPath = viper.ConfigFileUsed()
		}
		if configPath == "" {
			configPath = config.DefaultPath()
		}
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		out.Success(fmt.Sprintf("Set %s = %s", args[0], args[1]))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fmt.Println(cfgFile)
		} else if used := viper.ConfigFileUsed(); used != "" {
			fmt.Println(used)
		} else {
			fmt.Println(config.DefaultPath())
		}
	},
}

// Flag variables
var (
	modelFilename string
	pageFilters   bool
	jobs          int
	forceYes      bool
	showProgress  bool
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.fieldshift/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json, yaml)")

	// rewrite flags
	rewriteCmd.Flags().StringVar(&modelFilename, "model", "", "model filename to exclude on directory runs (default from config)")
	rewriteCmd.Flags().BoolVar(&pageFilters, "page-filters", false, "also rewrite page-level filters (can corrupt reports in some host versions)")
	rewriteCmd.Flags().IntVar(&jobs, "jobs", 0, "concurrent workers on directory runs (default from config)")
	rewriteCmd.Flags().BoolVarP(&forceYes, "yes", "y", false, "skip the directory-run confirmation")
	rewriteCmd.Flags().BoolVar(&showProgress, "progress", false, "show a progress bar instead of per-visual logs on directory runs")

	// slicers flags
	slicersCmd.Flags().StringVar(&modelFilename, "model", "", "model filename to exclude on directory runs (default from config)")
	slicersCmd.Flags().IntVar(&jobs, "jobs", 0, "concurrent workers on directory runs (default from config)")
	slicersCmd.Flags().BoolVarP(&forceYes, "yes", "y", false, "skip the directory-run confirmation")

	// config subcommands
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	// Add commands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(slicersCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(configCmd)

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// Command implementations

func runRewrite(cmd *cobra.Command, args []string) error {
	var path, oldField, newField string

	switch len(args) {
	case 3:
		path, oldField, newField = args[0], args[1], args[2]
	case 0:
		// The original shipped a desktop dialog for these inputs; the
		// terminal form asks for the same four values.
		details, err := ui.RewriteForm(&ui.RewriteDetails{Model: cfg.Rewrite.ModelFilename})
		if err != nil {
			return err
		}
		path, oldField, newField = details.Path, details.Old, details.New
		if modelFilename == "" {
			modelFilename = details.Model
		}
	default:
		return fmt.Errorf("provide path, old and new together, or no arguments for interactive mode")
	}

	rn, err := rewrite.ParseRename(oldField, newField)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	if info.IsDir() && !forceYes && !quiet {
		confirmed, err := ui.Confirm(
			fmt.Sprintf("Rewrite %q %s %q in every report under %s?", rn.Old, ui.IconArrow, rn.New, path),
			true,
		)
		if err != nil {
			return err
		}
		if !confirmed {
			out.Info("Cancelled")
			return nil
		}
	}

	job := func(ctx context.Context, file string) error {
		return rewriteFile(file, rn)
	}
	switch {
	case info.IsDir() && showProgress:
		job = withProgress(path, batchOptions(), job)
	case !info.IsDir() && !quiet && !verbose:
		job = withSpinner(job)
	}

	res, err := batch.Run(cmd.Context(), path, batchOptions(), job)
	if err != nil {
		return err
	}
	return report(res, fmt.Sprintf("%q %s %q", rn.Old, ui.IconArrow, rn.New))
}

// withSpinner decorates a single-file job with a spinner, demoting the
// per-visual logs that would tear it.
func withSpinner(job batch.Job) batch.Job {
	logger.SetLevel("error")
	return func(ctx context.Context, file string) error {
		spinner := ui.NewSimpleSpinner(fmt.Sprintf("Rewriting %s", filepath.Base(file)))
		spinner.Start()
		if err := job(ctx, file); err != nil {
			spinner.StopFail(fmt.Sprintf("Failed: %s", filepath.Base(file)))
			return err
		}
		spinner.Stop(fmt.Sprintf("Done: %s", filepath.Base(file)))
		return nil
	}
}

// withProgress decorates a job with a progress bar sized by a discovery
// pre-pass. Log output is demoted so the bar stays readable.
func withProgress(root string, opts batch.Options, job batch.Job) batch.Job {
	files, err := batch.Discover(root, opts.Model)
	if err != nil || len(files) == 0 {
		return job
	}
	logger.SetLevel("error")
	bar := ui.NewProgress(int64(len(files)))
	bar.Start("Rewriting reports")
	var remaining atomic.Int64
	remaining.Store(int64(len(files)))
	return func(ctx context.Context, file string) error {
		err := job(ctx, file)
		bar.Increment(file)
		if remaining.Add(-1) == 0 {
			bar.Done()
		}
		return err
	}
}

func runSlicers(cmd *cobra.Command, args []string) error {
	res, err := batch.Run(cmd.Context(), args[0], batchOptions(), func(ctx context.Context, file string) error {
		return slicersFile(file)
	})
	if err != nil {
		return err
	}
	return report(res, "slicer reset")
}

// updatedTotal accumulates mutation counts across concurrent jobs.
var updatedTotal atomic.Int64

func rewriteFile(path string, rn rewrite.Rename) error {
	r, err := rewrite.Open(path)
	if err != nil {
		return err
	}
	if pageFilters || cfg.Rewrite.PageFilters {
		r.EnablePageFilters()
	}
	if err := r.UpdateFields(rn); err != nil {
		return err
	}
	if err := r.Save(); err != nil {
		return err
	}
	updatedTotal.Add(int64(r.Updated()))
	return nil
}

func slicersFile(path string) error {
	r, err := rewrite.Open(path)
	if err != nil {
		return err
	}
	if err := r.UpdateSlicers(); err != nil {
		return err
	}
	if err := r.Save(); err != nil {
		return err
	}
	updatedTotal.Add(int64(r.Updated()))
	return nil
}

func runFields(cmd *cobra.Command, args []string) error {
	raw, err := container.ReadLayout(args[0])
	if err != nil {
		return err
	}
	inv, err := inventory.Collect(raw)
	if err != nil {
		return err
	}

	if len(args) > 1 {
		matches := inv.FindInstances(args[1:])
		if output == "json" || output == "yaml" {
			return out.Data(matches)
		}
		table := ui.NewTable(out, "CANDIDATE", "USED")
		for _, cand := range args[1:] {
			used := "no"
			if matches[cand] {
				used = "yes"
			}
			table.AddRow(cand, used)
		}
		table.Render()
		return nil
	}

	fields := inv.Fields()
	if output == "json" || output == "yaml" {
		return out.Data(fields)
	}

	out.Title(fmt.Sprintf("Fields: %s", args[0]))
	if len(fields) == 0 {
		out.Info("No field references found")
		return nil
	}
	table := ui.NewTable(out, "FIELD")
	for _, f := range fields {
		table.AddRow(f)
	}
	table.Render()
	return nil
}

func batchOptions() batch.Options {
	model := modelFilename
	if model == "" {
		model = cfg.Rewrite.ModelFilename
	}
	n := jobs
	if n <= 0 {
		n = cfg.Batch.Jobs
	}
	return batch.Options{Model: model, Jobs: n}
}

func report(res batch.Result, what string) error {
	updated := updatedTotal.Load()
	if updated == 0 {
		out.Info("Nothing to update")
	} else {
		out.Box(fmt.Sprintf(
			"%s %s\n%s Updated:  %d\n%s Files:    %d",
			ui.IconField, what,
			ui.IconSuccess, updated,
			ui.IconReport, res.Processed,
		))
	}
	if res.OK() {
		return nil
	}
	for _, fe := range res.Failed {
		out.Error(fe.Error())
	}
	return fmt.Errorf("%d of %d file(s) failed", len(res.Failed), res.Processed)
}
