package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/JonMunkholm/customs/internal/config"
	"github.com/JonMunkholm/customs/internal/core"
	"github.com/JonMunkholm/customs/internal/web"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func cmdRun(cfg func() *config.Config) *cobra.Command {
	dryRun := false
	addFlags := func(cmd *cobra.Command) error {
		cmd.Flags().BoolVar(&dryRun, "dry-run", dryRun, "build the report but do not load it or advance the watermark")
		return nil
	}
	var cmd = &cobra.Command{
		Use:          "run",
		Short:        "run the pipeline once",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg(), openOptions{Ping: !dryRun, ReadOnly: dryRun})
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.pipeline(ctx)
			if err != nil {
				return err
			}

			res, err := p.Run(ctx, core.RunOptions{DryRun: dryRun})
			if err != nil {
				return errors.New(core.FormatUserError(err))
			}
			return printJSON(summary(res))
		},
	}
	if err := addFlags(cmd); err != nil {
		log.Fatal(err)
	}
	return cmd
}

func cmdServe(cfg func() *config.Config) *cobra.Command {
	var cmd = &cobra.Command{
		Use:          "serve",
		Short:        "serve the HTTP API and run the pipeline on a schedule",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			ctx := cmd.Context()

			a, err := openApp(ctx, c, openOptions{Ping: true})
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.pipeline(ctx)
			if err != nil {
				return err
			}

			server := web.NewServer(p, web.Options{
				Watermarks:   a.watermarks,
				WatermarkKey: c.Watermark.Key,
				HealthCheck:  a.pool.Ping,
				Server:       c.Server,
				Security:     c.Security,
			})

			// Create cancellable context for background jobs
			jobCtx, cancelJobs := context.WithCancel(context.Background())
			defer cancelJobs()

			if c.Schedule.Enabled {
				go p.StartRefreshScheduler(jobCtx, core.ScheduleConfig{
					Interval: c.Schedule.Interval,
					Timeout:  c.Schedule.Timeout,
				})
			}

			// Graceful shutdown
			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh

				slog.Info("shutting down...")

				// Stop background jobs
				cancelJobs()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Server.ShutdownTimeout)
				defer cancel()

				// Wait for an active run to complete (with timeout)
				if st := p.Active(); st.Active {
					slog.Info("waiting for run to complete", "run_id", st.RunID)
					if err := p.Guard.WaitForDrain(shutdownCtx); err != nil {
						slog.Warn("run did not complete in time", "error", err)
					} else {
						slog.Info("run completed")
					}
				}

				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("shutdown error", "error", err)
				}
			}()

			if err := server.Start(); err != nil {
				slog.Info("server stopped", "error", err)
			}
			return nil
		},
	}
	return cmd
}

func cmdWatermark(cfg func() *config.Config) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "watermark",
		Short: "inspect or override the stored publication date",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "get",
		Short:        "print the stored watermark",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			a, err := openApp(cmd.Context(), c, openOptions{ReadOnly: true})
			if err != nil {
				return err
			}
			defer a.Close()

			value, ok, err := a.watermarks.Get(cmd.Context(), c.Watermark.Key)
			if err != nil {
				return fmt.Errorf("read watermark: %w", err)
			}
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: not set\n", c.Watermark.Key)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "set <dd.mm.yyyy>",
		Short:        "overwrite the stored watermark",
		Long:         `Overwrite the stored watermark. Setting an older date forces the next run to re-ingest.`,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := core.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("invalid date %q: want dd.mm.yyyy", args[0])
			}

			c := cfg()
			a, err := openApp(cmd.Context(), c, openOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			value := core.FormatWatermark(t)
			if err := a.watermarks.Set(cmd.Context(), c.Watermark.Key, value); err != nil {
				return fmt.Errorf("store watermark: %w", err)
			}
			slog.Info("watermark set", "key", c.Watermark.Key, "value", value)
			return nil
		},
	})
	return cmd
}

func cmdVersion() *cobra.Command {
	showBuildInfo := false
	addFlags := func(cmd *cobra.Command) error {
		cmd.Flags().BoolVar(&showBuildInfo, "build-info", showBuildInfo, "show build information")
		return nil
	}
	var cmd = &cobra.Command{
		Use:   "version",
		Short: "display the application's version number",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showBuildInfo {
				if info, ok := debug.ReadBuildInfo(); ok {
					fmt.Println(info.String())
					return nil
				}
			}
			fmt.Println(version)
			return nil
		},
	}
	if err := addFlags(cmd); err != nil {
		log.Fatal(err)
	}
	return cmd
}

// runSummary is the JSON printed after a run.
type runSummary struct {
	RunID             string `json:"run_id"`
	Outcome           string `json:"outcome"`
	PreviousWatermark string `json:"previous_watermark,omitempty"`
	NewWatermark      string `json:"new_watermark,omitempty"`
	ReportFile        string `json:"report_file,omitempty"`
	LogRows           int    `json:"log_rows"`
	ReportRows        int    `json:"report_rows"`
	Loaded            int64  `json:"loaded"`
	DurationMS        int64  `json:"duration_ms"`
}

func summary(r core.RunResult) runSummary {
	return runSummary{
		RunID:             r.RunID,
		Outcome:           string(r.Outcome),
		PreviousWatermark: r.PreviousWatermark,
		NewWatermark:      r.NewWatermark,
		ReportFile:        r.ReportFile,
		LogRows:           r.LogRows,
		ReportRows:        r.ReportRows,
		Loaded:            r.Loaded,
		DurationMS:        r.Duration.Milliseconds(),
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
