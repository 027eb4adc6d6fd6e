package dedupe

import (
	"fmt"
	"io"
	"strings"
)

// WriteReport renders the human-auditable resolution report: every group,
// its members and why the survivor won.
func WriteReport(w io.Writer, res Resolution) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Duplicate resolution %s\n", res.RunID)
	fmt.Fprintf(&b, "Groups: %d  Survivors: %d  Proposed deletions: %d\n",
		len(res.Groups), len(res.KeepIDs), len(res.DeleteIDs))

	for i, g := range res.Groups {
		fmt.Fprintf(&b, "\n[%d] %q @ %q — survivor %s (won on %s)\n",
			i+1, g.Key.Title, g.Key.Company, g.SurvivorID, g.Reason)
		for _, m := range g.Members {
			marker := "delete"
			if m.ID == g.SurvivorID {
				marker = "keep  "
			}
			fmt.Fprintf(&b, "  %s %s site=%s desc=%dch loc=%q salary=%s remote=%s scraped=%s\n",
				marker, m.ID, m.Site, len(strings.TrimSpace(m.Description)), m.Location,
				salaryLabel(m.MinAmount, m.MaxAmount), remoteLabel(m.IsRemote),
				m.DateScraped.Format("2006-01-02 15:04:05"))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func salaryLabel(min, max *float64) string {
	if min == nil && max == nil {
		return "none"
	}
	format := func(v *float64) string {
		if v == nil {
			return "?"
		}
		return fmt.Sprintf("%.0f", *v)
	}
	return format(min) + "-" + format(max)
}

func remoteLabel(v *bool) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%t", *v)
}
