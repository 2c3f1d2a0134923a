// Package reconcile merges a scraped row batch into the product store.
package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fairyhunter13/glass-catalog-updater/internal/ingest"
	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
	"github.com/fairyhunter13/glass-catalog-updater/internal/stableid"
	"github.com/fairyhunter13/glass-catalog-updater/internal/store"
)

// Options scope one reconciliation pass.
type Options struct {
	// Today is the calendar day (model.DateLayout) stamped on transitions.
	Today string
	// ScrapedManufacturers limits the discontinued sweep. Nil means every manufacturer.
	ScrapedManufacturers []string
	// SkippedManufacturers are never swept, typically because their source was blocked.
	SkippedManufacturers []string
}

// Stats counts outcomes per row (new, updated, unchanged) and per sweep (discontinued).
type Stats struct {
	New          int `json:"new"`
	Updated      int `json:"updated"`
	Discontinued int `json:"discontinued"`
	Unchanged    int `json:"unchanged"`
}

// Total is the number of records that changed.
func (s Stats) Total() int { return s.New + s.Updated + s.Discontinued }

// ChangeKind classifies a change log entry.
type ChangeKind string

const (
	ChangeNew          ChangeKind = "new"
	ChangeUpdated      ChangeKind = "updated"
	ChangeReactivated  ChangeKind = "reactivated"
	ChangeDiscontinued ChangeKind = "discontinued"
)

// Change is one entry of the change log.
type Change struct {
	Kind         ChangeKind `json:"kind"`
	Key          string     `json:"key"`
	Manufacturer string     `json:"manufacturer"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Fields       []string   `json:"fields,omitempty"`
}

func (c Change) String() string {
	head := fmt.Sprintf("%s - %s (%s)", c.Manufacturer, c.Name, c.Code)
	switch c.Kind {
	case ChangeNew:
		return "  + NEW: " + head
	case ChangeReactivated:
		return "  ^ REACTIVATED: " + head
	case ChangeDiscontinued:
		return "  - DISCONTINUED: " + head
	default:
		return "  * UPDATED: " + head + " - Changed: " + strings.Join(c.Fields, ", ")
	}
}

// Report is the outcome of Reconcile.
type Report struct {
	Stats   Stats    `json:"stats"`
	Changes []Change `json:"changes"`
	// Total is the store size after the pass.
	Total int `json:"total"`
	// Checked lists the manufacturers the sweep covered; nil when it covered all.
	Checked []string `json:"checked,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
	// StableIDs is filled in by callers that assign ids after reconciling.
	StableIDs *stableid.Result `json:"stable_ids,omitempty"`
}

// Reconcile applies rows to st. The batch is checked for duplicate keys
// first; on conflict st is left untouched and a *ingest.ConflictError is
// returned. Records are never removed from st.
func Reconcile(st *store.Store, rows []model.Row, opts Options) (Report, error) {
	if has, conflicts := ingest.DetectConflicts(rows); has {
		obs.Logger.Error("duplicate_keys", "conflicts", len(conflicts.Conflicts))
		return Report{}, &ingest.ConflictError{Report: conflicts}
	}
	if opts.Today == "" {
		return Report{}, fmt.Errorf("reconcile: today is required")
	}

	var rep Report
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		key := row.Key().String()
		seen[key] = struct{}{}
		incoming := model.NewProduct(row)

		existing, ok := st.Get(key)
		if !ok {
			incoming.AddedDate = opts.Today
			incoming.LastSeen = opts.Today
			st.Put(incoming)
			rep.Stats.New++
			rep.add(ChangeNew, incoming, nil)
			continue
		}

		fields := existing.Merge(incoming, row.Columns)
		existing.LastSeen = opts.Today
		switch {
		case existing.Reactivate():
			rep.Stats.Updated++
			rep.add(ChangeReactivated, existing, fields)
		case len(fields) > 0:
			rep.Stats.Updated++
			rep.add(ChangeUpdated, existing, fields)
		default:
			rep.Stats.Unchanged++
		}
	}

	sweep := sweepFilter(opts)
	for _, key := range st.Keys() {
		if _, ok := seen[key]; ok {
			continue
		}
		p, _ := st.Get(key)
		if !sweep(p.Manufacturer) {
			continue
		}
		if p.Discontinue(opts.Today) {
			rep.Stats.Discontinued++
			rep.add(ChangeDiscontinued, p, nil)
		}
	}

	rep.Total = st.Len()
	rep.Skipped = slices.Clone(opts.SkippedManufacturers)
	if opts.ScrapedManufacturers != nil {
		rep.Checked = make([]string, 0, len(opts.ScrapedManufacturers))
		for _, m := range opts.ScrapedManufacturers {
			if !slices.Contains(opts.SkippedManufacturers, m) {
				rep.Checked = append(rep.Checked, m)
			}
		}
	}
	obs.Logger.Info("reconcile_done",
		"new", rep.Stats.New,
		"updated", rep.Stats.Updated,
		"discontinued", rep.Stats.Discontinued,
		"unchanged", rep.Stats.Unchanged,
		"total", rep.Total,
	)
	return rep, nil
}

func sweepFilter(opts Options) func(mfr string) bool {
	skipped := make(map[string]struct{}, len(opts.SkippedManufacturers))
	for _, m := range opts.SkippedManufacturers {
		skipped[m] = struct{}{}
	}
	var scraped map[string]struct{}
	if opts.ScrapedManufacturers != nil {
		scraped = make(map[string]struct{}, len(opts.ScrapedManufacturers))
		for _, m := range opts.ScrapedManufacturers {
			scraped[m] = struct{}{}
		}
	}
	return func(mfr string) bool {
		if _, ok := skipped[mfr]; ok {
			return false
		}
		if scraped == nil {
			return true
		}
		_, ok := scraped[mfr]
		return ok
	}
}

func (r *Report) add(kind ChangeKind, p *model.Product, fields []string) {
	r.Changes = append(r.Changes, Change{
		Kind:         kind,
		Key:          p.Key().String(),
		Manufacturer: p.Manufacturer,
		Code:         p.Code,
		Name:         p.Name,
		Fields:       fields,
	})
}
