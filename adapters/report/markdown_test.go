package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"assaygate/app"
	"assaygate/domain/calibration"
	"assaygate/domain/core"
	"assaygate/domain/governance"
	"assaygate/domain/ledger"
	"assaygate/domain/mechanism"
)

func sampleHistory() []app.CycleOutcome {
	return []app.CycleOutcome{
		{
			Cycle: 0,
			Posterior: mechanism.Posterior{
				TopMechanism:   mechanism.MitoDysfunction,
				TopProbability: 0.91,
			},
			Evidence: 4.2,
			Decision: governance.Decision{
				Action:    governance.ActionCommit,
				Mechanism: mechanism.MitoDysfunction,
				Reason:    "top probability and evidence clear both bars",
			},
			Resolution: ledger.Resolution{
				ClaimedGainBits:  1.0,
				RealizedGainBits: 1.4,
				DebtAfter:        0,
			},
			Transitions: []calibration.Transition{{
				Quantity:      calibration.QuantityGlobalNoise,
				From:          calibration.StateAccumulating,
				To:            calibration.StateStable,
				RelativeWidth: 0.21,
			}},
		},
		{
			Cycle: 1,
			Posterior: mechanism.Posterior{
				TopMechanism:   mechanism.Nuisance,
				TopProbability: 0.55,
			},
			Evidence: 0.1,
			Decision: governance.Decision{
				Action:  governance.ActionNoCommit,
				Blocker: governance.BlockerLowTopProb,
				Reason:  "top probability below commit threshold",
			},
			Resolution: ledger.Resolution{
				ClaimedGainBits:  1.0,
				RealizedGainBits: 0.2,
				DebtIncrement:    0.8,
				DebtAfter:        0.8,
			},
			Repaid: 0.3,
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	s := Summary{
		RunID:  core.RunID(core.NewID()),
		Debt:   ledger.DebtState{DebtBits: 0.8, TotalRepaidBits: 0.3},
		Cycles: 2,
	}
	md := RenderMarkdown(s, sampleHistory())

	assert.Contains(t, md, "# Run "+string(s.RunID))
	assert.Contains(t, md, "| 0 | COMMIT | MITO_DYSFUNCTION | 0.910 |")
	assert.Contains(t, md, "TOP_PROB_BELOW_COMMIT_THRESHOLD")
	assert.Contains(t, md, "Gate global_noise: ACCUMULATING to STABLE")
	assert.Contains(t, md, "Repayment: 0.300 bits")
	assert.Equal(t, 2, strings.Count(md, "### Cycle"))
}

func TestRenderMarkdownInsolvent(t *testing.T) {
	s := Summary{
		RunID: core.RunID(core.NewID()),
		Debt:  ledger.DebtState{DebtBits: 2.4, Insolvent: true},
	}
	md := RenderMarkdown(s, nil)
	assert.Contains(t, md, "(insolvent)")
}

func TestRenderHTML(t *testing.T) {
	s := Summary{RunID: core.RunID(core.NewID()), Cycles: 2}
	out := string(RenderHTML(s, sampleHistory()))

	assert.Contains(t, out, "<h1>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "COMMIT")
}
