package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Engine Audit Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Range: %s .. %s\n\n",
		time.Unix(r.RangeStart, 0).UTC().Format(time.RFC3339),
		time.Unix(r.RangeEnd, 0).UTC().Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Events | %d |\n", r.Summary.TotalEvents))
	sb.WriteString(fmt.Sprintf("| Completed | %d |\n", r.Summary.Completed))
	sb.WriteString(fmt.Sprintf("| Rejected | %d |\n", r.Summary.Rejected))
	sb.WriteString(fmt.Sprintf("| Distinct Holders | %d |\n", r.Summary.DistinctHolders))
	sb.WriteString(fmt.Sprintf("| Transferred | %s |\n", r.Summary.TransferredTotal))
	sb.WriteString(fmt.Sprintf("| Rewards Issued | %s |\n", r.Summary.RewardsTotal))
	sb.WriteString("\n")

	// Operations
	sb.WriteString("## Operations\n\n")
	if len(r.ByKind) > 0 {
		sb.WriteString("| Kind | Total | Completed | Rejected | Amount | Rewards |\n")
		sb.WriteString("|------|-------|-----------|----------|--------|---------|\n")
		for _, k := range r.ByKind {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %s | %s |\n",
				k.Kind, k.Total, k.Completed, k.Rejected, k.Amount, k.Rewards))
		}
	} else {
		sb.WriteString("No operations in range.\n")
	}
	sb.WriteString("\n")

	// Rejections
	sb.WriteString("## Rejections\n\n")
	if len(r.Rejections) > 0 {
		sb.WriteString("| Kind | Stage | Count |\n")
		sb.WriteString("|------|-------|-------|\n")
		for _, rej := range r.Rejections {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", rej.Kind, rej.Stage, rej.Count))
		}
	} else {
		sb.WriteString("No rejections.\n")
	}
	sb.WriteString("\n")

	// Holders
	sb.WriteString("## Holders\n\n")
	if len(r.Holders) > 0 {
		sb.WriteString("| Authority | Transfers | Claims | Rejections | Transferred | Rewards |\n")
		sb.WriteString("|-----------|-----------|--------|------------|-------------|---------|\n")
		for _, h := range r.Holders {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %s | %s |\n",
				h.Authority, h.Transfers, h.Claims, h.Rejections, h.Transferred, h.Rewards))
		}
	} else {
		sb.WriteString("No holder activity.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
