package reconcile

import (
	"fmt"
	"strings"
)

var rule = strings.Repeat("=", 70)

// Summary renders the operator summary printed before anything is saved.
func (r Report) Summary(dryRun bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nDATABASE UPDATE SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(&b, "New products:         %d\n", r.Stats.New)
	fmt.Fprintf(&b, "Updated products:     %d\n", r.Stats.Updated)
	fmt.Fprintf(&b, "Discontinued:         %d\n", r.Stats.Discontinued)
	fmt.Fprintf(&b, "Unchanged:            %d\n", r.Stats.Unchanged)
	fmt.Fprintf(&b, "Total in database:    %d\n", r.Total)

	if len(r.Checked) > 0 {
		fmt.Fprintf(&b, "\nDiscontinued check covered %d manufacturer(s):\n", len(r.Checked))
		for _, m := range r.Checked {
			fmt.Fprintf(&b, "  - %s\n", m)
		}
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped manufacturers (bot protection, products preserved):\n")
		for _, m := range r.Skipped {
			fmt.Fprintf(&b, "  - %s\n", m)
		}
	}
	if ids := r.StableIDs; ids != nil && (ids.Assigned > 0 || len(ids.Collisions) > 0) {
		fmt.Fprintf(&b, "\nStable ids: %d assigned, %d existing\n", ids.Assigned, ids.Existing)
		for _, c := range ids.Collisions {
			fmt.Fprintf(&b, "  ! collision resolved: %s -> %s (was %s)\n", c.Key, c.ID, c.Candidate)
		}
	}
	if len(r.Changes) > 0 {
		fmt.Fprintf(&b, "\n%s\nDETAILED CHANGES:\n%s\n", rule, rule)
		for _, c := range r.Changes {
			b.WriteString(c.String())
			b.WriteByte('\n')
		}
	}
	b.WriteString(rule + "\n")
	if dryRun {
		b.WriteString("\nDRY RUN - no changes saved\n")
	}
	return b.String()
}
