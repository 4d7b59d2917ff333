package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"assaygate/adapters/eventlog"
	pgsink "assaygate/adapters/eventlog/postgres"
	"assaygate/adapters/report"
	"assaygate/app"
	"assaygate/domain/audit"
	"assaygate/domain/core"
	"assaygate/domain/ledger"
	"assaygate/domain/mechanism"
	"assaygate/internal"
	"assaygate/internal/config"
	"assaygate/internal/testkit"
	"assaygate/ports"
)

func main() {
	logger := internal.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config: %v", err)
		os.Exit(1)
	}

	run, events, err := startDemoRun(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("start demo run: %v", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "run_id": string(run.ID())})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/gates", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, run.CurrentGateStatus())
		})
		r.Get("/debt", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, run.CurrentDebtStatus())
		})
		r.Get("/history", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, run.History())
		})
		r.Get("/events", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, events.Events())
		})
		r.Get("/report", func(w http.ResponseWriter, _ *http.Request) {
			history := run.History()
			s := report.Summary{RunID: run.ID(), Debt: run.CurrentDebtStatus(), Cycles: len(history)}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write(report.RenderHTML(s, history))
		})
	})

	addr := ":" + cfg.Server.Port
	logger.Info("status API listening on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("server failed: %v", err)
		os.Exit(1)
	}
}

// teeLog mirrors the audit stream to every sink; the in-memory copy backs
// the read endpoints while postgres keeps the durable trail.
type teeLog struct {
	sinks []ports.EventLog
}

func (t teeLog) Append(ctx context.Context, event audit.Event) error {
	for _, s := range t.sinks {
		if err := s.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// startDemoRun drives a few cycles against the synthetic wet lab so the
// status endpoints have real gate, debt, and history state to serve.
func startDemoRun(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*app.Run, *eventlog.Memory, error) {
	world := testkit.NewWorld(1, mechanism.ERStress, 0.4)
	events := eventlog.NewMemory()

	var sink ports.EventLog = events
	if cfg.Database.URL != "" {
		pg, err := pgsink.Open(cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		sink = teeLog{sinks: []ports.EventLog{events, pg}}
		logger.Info("audit stream mirrored to postgres")
	}

	run, err := app.NewRun(cfg, testkit.StandardHypothesisSet(), testkit.StandardNuisanceModel(), world, sink, app.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	for cycle := 0; cycle < 4; cycle++ {
		design := ports.Design{
			ID:              core.DesignID(core.NewID()),
			Action:          ledger.ProposedAction{Name: "dose_response_panel", Cost: 8},
			ClaimedGainBits: 0.2,
			Modalities:      []string{"imaging"},
			WellCount:       24,
		}
		claimID, err := run.ProposeAndClaim(ctx, design)
		if err != nil {
			logger.Warn("demo cycle %d claim refused: %v", cycle, err)
			break
		}
		obs, err := run.ExecuteDesign(ctx, design)
		if err != nil {
			return nil, nil, err
		}
		if _, err := run.ObserveAndResolve(ctx, claimID, obs); err != nil {
			return nil, nil, err
		}
	}
	return run, events, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
