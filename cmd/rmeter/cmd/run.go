package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rixmerz/rmeter/internal/aggregator"
	"github.com/Rixmerz/rmeter/internal/engine"
	"github.com/Rixmerz/rmeter/internal/events"
	"github.com/Rixmerz/rmeter/internal/httpdispatch"
	"github.com/Rixmerz/rmeter/internal/plan"
	"github.com/Rixmerz/rmeter/internal/shared/config"
	"github.com/Rixmerz/rmeter/internal/shared/logger"
)

var (
	tickInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <plan-file>",
	Short: "Run a load-test plan locally and print live progress",
	Long: `Run executes a plan file (JSON or YAML) in-process, without a control-surface
server, printing a periodic progress line until the run finishes or is
interrupted.

Example:
  rmeter run plan.json
  rmeter run plan.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPlanFile,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVar(&tickInterval, "tick", 500*time.Millisecond, "progress print interval")
}

func runPlanFile(cmd *cobra.Command, args []string) error {
	p, err := plan.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logger.NewWithLevel(cfg.Logger.Level)
	defer log.Sync()

	store := engine.NewPlanStore()
	store.Put(p)

	hub := events.NewHub(log)
	dispatcher := httpdispatch.New(cfg.Engine.HTTPTimeout, cfg.Engine.MaxRedirects)
	controller := engine.New(store.Lookup, dispatcher, hub, log)

	sub, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Printf("%s %s (%s)\n", color.CyanString("▶"), p.Name, p.ID)

	if err := controller.Start(ctx, p.ID); err != nil {
		return fmt.Errorf("starting run: %w", err)
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println(color.YellowString("\nforce-stopping..."))
			_ = controller.ForceStop()
		case <-ticker.C:
			printProgress(controller.Progress())
		case e, ok := <-sub:
			if !ok {
				return nil
			}
			if e.Type == events.TestComplete {
				printSummary(e.Data)
				return nil
			}
		}
	}
}

func printProgress(p aggregator.ProgressSnapshot) {
	fmt.Printf("%s completed=%d errors=%d active_vus=%d rps=%.1f mean=%.1fms p95=%.0fms\n",
		color.GreenString("·"), p.CompletedRequests, p.TotalErrors, p.ActiveVUs,
		p.CurrentRPS, p.MeanMs, p.P95Ms)
}

func printSummary(data interface{}) {
	s, ok := data.(aggregator.Summary)
	if !ok {
		return
	}
	fmt.Println(color.CyanString("\n── summary ──"))
	fmt.Printf("total=%d success=%d failed=%d\n", s.TotalRequests, s.SuccessfulRequests, s.FailedRequests)
	fmt.Printf("min=%dms mean=%.1fms p50=%dms p95=%dms p99=%dms max=%dms\n",
		s.MinMs, s.MeanMs, s.P50Ms, s.P95Ms, s.P99Ms, s.MaxMs)
	fmt.Printf("avg_rps=%.1f duration=%s\n", s.AvgRPS, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}
