package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
)

// ErrDuplicateKeys means two rows share a product key but not a URL.
var ErrDuplicateKeys = errors.New("duplicate product keys with different urls")

// ConflictRow is one of the rows colliding on a key.
type ConflictRow struct {
	Manufacturer string `json:"manufacturer"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	URL          string `json:"manufacturer_url"`
}

// Conflict groups every row that shares Key.
type Conflict struct {
	Key  string        `json:"key"`
	Rows []ConflictRow `json:"rows"`
}

// Report lists conflicts in key order.
type Report struct {
	Conflicts []Conflict `json:"conflicts"`
}

// String renders the report for the operator.
func (r Report) String() string {
	if len(r.Conflicts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nDUPLICATE KEYS DETECTED (different URLs):\n")
	b.WriteString(strings.Repeat("=", 70) + "\n")
	for _, c := range r.Conflicts {
		fmt.Fprintf(&b, "\nKey: %s\n", c.Key)
		for _, row := range c.Rows {
			fmt.Fprintf(&b, "  - %s / %s / %s\n", row.Manufacturer, row.Code, row.Name)
			if row.URL != "" {
				fmt.Fprintf(&b, "    URL: %s\n", row.URL)
			}
		}
	}
	b.WriteString("\nResolve duplicates (sku_overrides.txt or excluded_urls.txt) before updating the database.\n")
	return b.String()
}

// ConflictError carries the report of a batch that must not be applied.
type ConflictError struct {
	Report Report
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d key(s)", ErrDuplicateKeys, len(e.Report.Conflicts))
}

// Is makes errors.Is(err, ErrDuplicateKeys) match.
func (e *ConflictError) Is(target error) bool { return target == ErrDuplicateKeys }

// DetectConflicts expects a batch that already went through DedupSameURL: any
// key still appearing more than once is a conflict.
func DetectConflicts(rows []model.Row) (bool, Report) {
	groups := make(map[string][]ConflictRow)
	for _, r := range rows {
		k := r.Key().String()
		groups[k] = append(groups[k], ConflictRow{
			Manufacturer: r.Manufacturer,
			Code:         r.Code,
			Name:         r.Name,
			URL:          r.URL,
		})
	}
	var rep Report
	for k, g := range groups {
		if len(g) > 1 {
			rep.Conflicts = append(rep.Conflicts, Conflict{Key: k, Rows: g})
		}
	}
	sort.Slice(rep.Conflicts, func(i, j int) bool { return rep.Conflicts[i].Key < rep.Conflicts[j].Key })
	return len(rep.Conflicts) > 0, rep
}
