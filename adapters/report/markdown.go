// Package report renders a run's cycle history as a markdown audit
// report and converts it to HTML for dashboards.
package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"assaygate/app"
	"assaygate/domain/core"
	"assaygate/domain/governance"
	"assaygate/domain/ledger"
)

// Summary carries the run-level state rendered at the top of the report
type Summary struct {
	RunID  core.RunID
	Debt   ledger.DebtState
	Cycles int
}

// RenderMarkdown produces the audit report source
func RenderMarkdown(s Summary, history []app.CycleOutcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "- Cycles: %d\n", s.Cycles)
	fmt.Fprintf(&b, "- Debt: %.3f bits", s.Debt.DebtBits)
	if s.Debt.Insolvent {
		b.WriteString(" (insolvent)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Repaid: %.3f bits\n", s.Debt.TotalRepaidBits)
	fmt.Fprintf(&b, "- Open claims: %d\n\n", s.Debt.OpenClaims)

	b.WriteString("## Cycles\n\n")
	b.WriteString("| Cycle | Action | Mechanism | Top P | Evidence (bits) | Claimed | Realized | Debt after |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, c := range history {
		fmt.Fprintf(&b, "| %d | %s | %s | %.3f | %.2f | %.2f | %.2f | %.3f |\n",
			c.Cycle,
			c.Decision.Action,
			mechanismCell(c.Decision),
			c.Posterior.TopProbability,
			c.Evidence,
			c.Resolution.ClaimedGainBits,
			c.Resolution.RealizedGainBits,
			c.Resolution.DebtAfter,
		)
	}
	b.WriteString("\n")

	for _, c := range history {
		if len(c.Transitions) == 0 && c.Repaid == 0 {
			continue
		}
		fmt.Fprintf(&b, "### Cycle %d\n\n", c.Cycle)
		for _, tr := range c.Transitions {
			fmt.Fprintf(&b, "- Gate %s: %s to %s (width %.3f, drift %.3f)",
				tr.Quantity, tr.From, tr.To, tr.RelativeWidth, tr.Drift)
			if tr.Breach != "" {
				fmt.Fprintf(&b, ", breach %s", tr.Breach)
			}
			b.WriteString("\n")
		}
		if c.Repaid > 0 {
			fmt.Fprintf(&b, "- Repayment: %.3f bits\n", c.Repaid)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func mechanismCell(d governance.Decision) string {
	if d.Action == governance.ActionCommit {
		return string(d.Mechanism)
	}
	if d.Blocker != "" {
		return string(d.Blocker)
	}
	return "-"
}

// RenderHTML converts the markdown report to a standalone HTML fragment
func RenderHTML(s Summary, history []app.CycleOutcome) []byte {
	src := []byte(RenderMarkdown(s, history))
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML(src, p, r)
}
