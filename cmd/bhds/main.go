package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"bhds/internal/config"
	"bhds/internal/logger"
	"bhds/internal/store/runlog"
	"bhds/internal/task"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "bhds",
		Usage:   "mirror and verify historical market data archives",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "home", Usage: "override the data home directory"},
			&cli.StringFlag{Name: "log-level", Usage: "log level (debug|info|warn|error)"},
		},
		Before: func(c *cli.Context) error {
			if lvl := c.String("log-level"); lvl != "" {
				logger.SetLevel(lvl)
			}
			return nil
		},
		Commands: []*cli.Command{
			awsDownloadCommand(),
			failedFilesCommand(),
			runsCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func awsDownloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "aws-download",
		Usage:     "run the download tasks configured in each YAML file",
		ArgsUsage: "<config.yaml>...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one config file is required", 2)
			}
			for _, path := range c.Args().Slice() {
				if err := runConfig(c, path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func runConfig(c *cli.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", path, err)
	}
	if home := c.String("home"); home != "" {
		cfg.Home = home
	}
	if c.String("log-level") == "" {
		logger.SetLevel(cfg.LogLevel)
	}
	restore, err := setupLogOutput(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("initializing log file: %w", err)
	}
	defer restore()
	logger.Infof("loaded config %s (task=%s)", path, cfg.Task)

	t, err := task.New(cfg)
	if err != nil {
		return err
	}
	// Per-item failures end up in the ledger, not here; an error means the
	// run itself could not plan or record results.
	return t.Run(c.Context)
}

func failedFilesCommand() *cli.Command {
	build := func(c *cli.Context) *task.FailedFilesTask {
		return task.NewFailedFilesTask(&config.Config{Task: "failed_files", Home: c.String("home")})
	}
	return &cli.Command{
		Name:  "failed-files",
		Usage: "inspect and act on the failed files ledger",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list failed files tracked in the ledger",
				Action: func(c *cli.Context) error {
					_, err := build(c).List()
					return err
				},
			},
			{
				Name:  "retry",
				Usage: "retry downloading failed files",
				Action: func(c *cli.Context) error {
					_, err := build(c).Retry(c.Context)
					return err
				},
			},
			{
				Name:  "clear",
				Usage: "clear the failed files ledger",
				Action: func(c *cli.Context) error {
					return build(c).Clear()
				},
			},
		},
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "show recent run history",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum runs to show"},
		},
		Action: func(c *cli.Context) error {
			cfg := &config.Config{Home: c.String("home"), RunLog: config.RunLogConfig{Enabled: true}}
			store, err := runlog.NewStore(cfg.RunLogPath())
			if err != nil {
				return err
			}
			defer store.Close()
			recs, err := store.Recent(c.Int("limit"))
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				logger.Infof("no recorded runs")
				return nil
			}
			for _, r := range recs {
				logger.Infof("%s %s: planned=%d succeeded=%d failed=%d skipped=%d abandoned=%d (run %s)",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.Task,
					r.Planned, r.Succeeded, r.Failed, r.Skipped, r.Abandoned, r.RunID)
			}
			return nil
		},
	}
}

// setupLogOutput mirrors log lines into the configured file for the duration
// of one config's run. The returned restore func puts both the wrapper and
// the stdlib logger back on their defaults before the file is closed.
func setupLogOutput(path string) (func(), error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return func() {}, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return func() {
		log.SetOutput(os.Stderr)
		logger.SetOutput(os.Stdout)
		file.Close()
	}, nil
}
