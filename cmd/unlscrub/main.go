package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/andys/unlscrub/config"
	"github.com/andys/unlscrub/export"
	"github.com/andys/unlscrub/runlog"
	"github.com/andys/unlscrub/worker"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/nightlyone/lockfile"
	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func main() {
	var cfg config.Config
	var noProgress bool

	app := &cli.App{
		Name:  "unlscrub",
		Usage: "Scrub personal data from an unloaded database export directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Config file path",
				Value:       "config.yml",
				EnvVars:     []string{"UNLSCRUB_CONFIG"},
				Destination: &cfg.ConfigFile,
			},
			&cli.StringFlag{
				Name:        "source",
				Aliases:     []string{"s"},
				Usage:       "Export directory holding the schema file and .unl data files",
				Required:    true,
				EnvVars:     []string{"UNLSCRUB_SOURCE"},
				Destination: &cfg.SourceDir,
			},
			&cli.StringFlag{
				Name:        "dest",
				Aliases:     []string{"d"},
				Usage:       "Target directory, recreated on every run",
				Required:    true,
				EnvVars:     []string{"UNLSCRUB_DEST"},
				Destination: &cfg.TargetDir,
			},
			&cli.StringFlag{
				Name:        "target-db",
				Usage:       "Optionally load the scrubbed tables into this database (mysql://, postgres:// or sqlite://)",
				EnvVars:     []string{"TARGET_DB_URL"},
				Destination: &cfg.TargetDBURL,
			},
			&cli.IntFlag{
				Name:        "workers",
				Aliases:     []string{"w"},
				Usage:       "Number of tables processed in parallel (default: number of CPUs)",
				Destination: &cfg.WorkerCount,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "Enable debug mode with verbose error output",
				Destination: &cfg.Debug,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "Enable verbose SQL output",
				Destination: &cfg.Verbose,
			},
			&cli.BoolFlag{
				Name:        "no-progress",
				Usage:       "Print log lines instead of a progress bar",
				Destination: &noProgress,
			},
		},
		Action: func(c *cli.Context) error {
			if err := config.LoadConfig(&cfg, cfg.ConfigFile); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			lock, err := acquireLock(cfg.TargetDir)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			var echo io.Writer
			if noProgress {
				echo = os.Stdout
			}
			sink, err := runlog.Open(cfg.Verification.Logging.Directory, cfg.Verification.Logging.Prefix, echo)
			if err != nil {
				return fmt.Errorf("failed to open log: %w", err)
			}
			defer sink.Close()
			sink.SetDebug(cfg.Debug)

			exporter, err := export.New(&cfg, sink)
			if err != nil {
				sink.Errorf("Setup failed: %v", err)
				return err
			}
			defer exporter.Close()

			color.Cyan("Processing %d tables from %s into %s", len(exporter.Tables()), cfg.SourceDir, cfg.TargetDir)

			var stopProgress func(bool)
			if !noProgress && len(exporter.Tables()) > 0 {
				stopProgress = showProgress(exporter.Progress(), int64(len(exporter.Tables())))
			}
			result, err := exporter.Run()
			if stopProgress != nil {
				stopProgress(result != nil && result.Summary != nil)
			}

			fmt.Printf("Log written to %s\n", sink.Path())
			if err != nil {
				var agg *worker.AggregateError
				if errors.As(err, &agg) {
					for _, r := range result.Summary.Failed() {
						color.Red("  %s: failed after %d attempts", r.Table, r.Attempts)
					}
				}
				return err
			}

			progress := exporter.Progress()
			color.Green("All %d tables processed successfully in %s", len(result.Tables),
				result.Summary.Duration.Round(time.Millisecond))
			fmt.Printf("Wrote %s records (%s)\n",
				humanize.Comma(result.Summary.Lines()), humanize.Bytes(uint64(progress.Bytes.Load())))
			fmt.Printf("Load script: %s\n", result.LoadScript)
			for table, rows := range result.LoadedRows {
				fmt.Printf("Loaded %s rows into %s\n", humanize.Comma(rows), table)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// acquireLock takes <target>.lock so two runs cannot share a target
func acquireLock(targetDir string) (lockfile.Lockfile, error) {
	abs, err := filepath.Abs(filepath.Clean(targetDir))
	if err != nil {
		return "", fmt.Errorf("failed to resolve target directory: %w", err)
	}
	lock, err := lockfile.New(abs + ".lock")
	if err != nil {
		return "", fmt.Errorf("failed to create lockfile: %w", err)
	}
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			return "", fmt.Errorf("another run is using %s", targetDir)
		}
		return "", fmt.Errorf("failed to lock %s: %w", targetDir, err)
	}
	return lock, nil
}

// showProgress draws a table counter until the returned stop function is
// called. stop(true) completes the bar, stop(false) aborts it.
func showProgress(progress *worker.Progress, total int64) func(bool) {
	container := mpb.New(mpb.WithRefreshRate(300 * time.Millisecond))
	bar := container.AddBar(total,
		mpb.BarFillerClearOnComplete(),
		mpb.PrependDecorators(
			decor.Name("tables "),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.NewPercentage("%.2f", decor.WCSyncSpaceR), "completed",
			),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO), "",
			),
			decor.OnComplete(
				decor.Any(func(decor.Statistics) string {
					return progress.CurrentTable()
				}, decor.WCSyncSpace), "",
			),
		),
	)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(300 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.SetCurrent(progress.ProcessedTables.Load())
			}
		}
	}()

	return func(ok bool) {
		close(done)
		if ok {
			bar.SetCurrent(total)
		} else {
			bar.Abort(false)
		}
		container.Wait()
	}
}
