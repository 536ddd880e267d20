package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

const usageText = `Usage: fintrack <command> [flags]

Commands:
  add       record a transaction
  list      list transactions, newest first
  rm        delete a transaction by id
  summary   print the dashboard figures
  chart     render a chart (category, monthly, daily or all)
  export    write the ledger as CSV, or mirror it with --sheets
  backup    write a JSON backup
  import    replace the ledger with a JSON backup
  reset     delete every transaction
  theme     show, set or toggle the display theme

Run "fintrack <command> --help" for the flags of a command.
`

// errUsage makes run print usage and exit with status 2.
var errUsage = errors.New("usage")

// app is the state shared by every command.
type app struct {
	cfg    *config.Config
	res    *backend.BackendResult
	svc    *services.TransactionService
	logger *log.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	run func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"add":     {runAdd},
	"list":    {runList},
	"rm":      {runRemove},
	"summary": {runSummary},
	"chart":   {runChart},
	"export":  {runExport},
	"backup":  {runBackup},
	"import":  {runImport},
	"reset":   {runReset},
	"theme":   {runTheme},
}

// run executes one command and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(stdout, usageText)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "fintrack: unknown command %q\n\n%s", args[0], usageText)
		return 2
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(stderr, envOr("LOG_LEVEL", "warn")).WithComponent(log.ComponentCLI)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(stderr, "fintrack: %v\n", err)
		return 1
	}
	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "fintrack: %v\n", err)
		return 1
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()
	svc, err := backend.NewService(res, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "fintrack: %v\n", err)
		return 1
	}

	a := &app{cfg: cfg, res: res, svc: svc, logger: logger, stdout: stdout, stderr: stderr}
	if err := cmd.run(ctx, a, args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "fintrack %s: %v\n", args[0], err)
			return 2
		}
		fmt.Fprintf(stderr, "fintrack %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

// newFlagSet builds a flag set that reports errors instead of exiting.
func (a *app) newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: fintrack %s\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// writeOutput writes data to path, or to stdout when path is "-".
func (a *app) writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(a.stdout, "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func (a *app) categoryNames() string {
	cats := a.svc.Rules().Categories
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
