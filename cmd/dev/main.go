package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"assaygate/adapters/eventlog"
	"assaygate/adapters/report"
	"assaygate/app"
	"assaygate/domain/core"
	"assaygate/domain/ledger"
	"assaygate/domain/mechanism"
	"assaygate/internal/config"
	"assaygate/internal/testkit"
	"assaygate/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "assaygate-dev",
		Short: "AssayGate development tools",
	}

	rootCmd.AddCommand(
		newSimulateCmd(),
		newSmokeTestCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSimulateCmd() *cobra.Command {
	var (
		runs   int
		cycles int
		seed   int64
		noise  float64
		truth  string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run independent simulated campaigns against a synthetic wet lab",
		RunE: func(cmd *cobra.Command, args []string) error {
			return simulate(cmd.Context(), runs, cycles, seed, noise, mechanism.MechanismID(truth), outDir)
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 4, "number of independent runs")
	cmd.Flags().IntVar(&cycles, "cycles", 6, "cycles per run")
	cmd.Flags().Int64Var(&seed, "seed", 1, "base random seed")
	cmd.Flags().Float64Var(&noise, "noise", 0.4, "measurement noise SD")
	cmd.Flags().StringVar(&truth, "truth", string(mechanism.MitoDysfunction), "ground-truth mechanism")
	cmd.Flags().StringVar(&outDir, "out", "reports", "report output directory")
	return cmd
}

func newSmokeTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run one clean claim cycle end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmokeTest(cmd.Context())
		},
	}
	return cmd
}

type simResult struct {
	runID   core.RunID
	summary report.Summary
	history []app.CycleOutcome
	err     error
}

func simulate(ctx context.Context, runs, cycles int, seed int64, noise float64, truth mechanism.MechanismID, outDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	fmt.Printf("Simulating %d runs x %d cycles (truth=%s, noise=%.2f)\n", runs, cycles, truth, noise)

	var mu sync.Mutex
	results := make([]simResult, 0, runs)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < runs; i++ {
		i := i
		g.Go(func() error {
			res := simulateOne(gctx, cfg, seed+int64(i), cycles, noise, truth)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return res.err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	for _, res := range results {
		md := report.RenderMarkdown(res.summary, res.history)
		path := filepath.Join(outDir, fmt.Sprintf("run_%s.md", res.runID))
		if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		htmlPath := filepath.Join(outDir, fmt.Sprintf("run_%s.html", res.runID))
		if err := os.WriteFile(htmlPath, report.RenderHTML(res.summary, res.history), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", htmlPath, err)
		}
		final := "no cycles"
		if len(res.history) > 0 {
			final = string(res.history[len(res.history)-1].Decision.Action)
		}
		fmt.Printf("  run %s: %d cycles, final %s, debt %.3f bits -> %s\n",
			res.runID, len(res.history), final, res.summary.Debt.DebtBits, path)
	}
	return nil
}

func simulateOne(ctx context.Context, cfg *config.Config, seed int64, cycles int, noise float64, truth mechanism.MechanismID) simResult {
	world := testkit.NewWorld(seed, truth, noise)
	events := eventlog.NewMemory()

	run, err := app.NewRun(cfg, testkit.StandardHypothesisSet(), testkit.StandardNuisanceModel(), world, events)
	if err != nil {
		return simResult{err: err}
	}
	defer run.Close(ctx)

	for cycle := 0; cycle < cycles; cycle++ {
		design := ports.Design{
			ID:              core.DesignID(core.NewID()),
			Action:          ledger.ProposedAction{Name: "dose_response_panel", Cost: 8},
			ClaimedGainBits: 0.2,
			Modalities:      []string{"imaging"},
			WellCount:       24,
		}
		claimID, err := run.ProposeAndClaim(ctx, design)
		if err != nil {
			return simResult{runID: run.ID(), err: fmt.Errorf("cycle %d claim: %w", cycle, err)}
		}
		obs, err := run.ExecuteDesign(ctx, design)
		if err != nil {
			return simResult{runID: run.ID(), err: fmt.Errorf("cycle %d execute: %w", cycle, err)}
		}
		if _, err := run.ObserveAndResolve(ctx, claimID, obs); err != nil {
			return simResult{runID: run.ID(), err: fmt.Errorf("cycle %d resolve: %w", cycle, err)}
		}
	}

	history := run.History()
	return simResult{
		runID: run.ID(),
		summary: report.Summary{
			RunID:  run.ID(),
			Debt:   run.CurrentDebtStatus(),
			Cycles: len(history),
		},
		history: history,
	}
}

func runSmokeTest(ctx context.Context) error {
	fmt.Println("Running smoke test...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	engine := testkit.NewScriptedEngine().
		QueueObservation(testkit.CleanObservation(mechanism.ERStress, 24))
	events := eventlog.NewMemory()

	run, err := app.NewRun(cfg, testkit.StandardHypothesisSet(), testkit.StandardNuisanceModel(), engine, events)
	if err != nil {
		return fmt.Errorf("new run: %w", err)
	}

	design := ports.Design{
		ID:              core.DesignID(core.NewID()),
		Action:          ledger.ProposedAction{Name: "dose_response_panel", Cost: 8},
		ClaimedGainBits: 0.5,
		Modalities:      []string{"imaging"},
		WellCount:       24,
	}
	claimID, err := run.ProposeAndClaim(ctx, design)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	obs, err := run.ExecuteDesign(ctx, design)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	res, err := run.ObserveAndResolve(ctx, claimID, obs)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	if err := run.Close(ctx); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	history := run.History()
	last := history[len(history)-1]
	fmt.Printf("  decision: %s %s\n", last.Decision.Action, last.Decision.Mechanism)
	fmt.Printf("  realized gain: %.3f bits (claimed %.3f)\n", res.RealizedGainBits, res.ClaimedGainBits)
	fmt.Printf("  events appended: %d\n", len(events.Events()))
	fmt.Println("Smoke test passed")
	return nil
}
