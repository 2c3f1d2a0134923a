// Package export projects the store into the public glass item document.
package export

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
	"github.com/fairyhunter13/glass-catalog-updater/internal/store"
)

// UnknownTag is the scraper placeholder that never reaches the export.
const UnknownTag = "unknown"

// Options control what Build projects.
type Options struct {
	IncludeDiscontinued bool
	// StripMetadata drops status, added_date, last_seen and discontinued_date.
	StripMetadata bool
	Now           time.Time
}

// Metadata is the bookkeeping part of an exported item.
type Metadata struct {
	Status           model.Status `json:"status"`
	AddedDate        string       `json:"added_date"`
	LastSeen         string       `json:"last_seen"`
	DiscontinuedDate *string      `json:"discontinued_date"`
}

// Item is one exported product.
type Item struct {
	StableID     string     `json:"stable_id,omitempty"`
	Manufacturer string     `json:"manufacturer"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date"`
	Description  string     `json:"manufacturer_description"`
	Tags         model.List `json:"tags"`
	Synonyms     model.List `json:"synonyms"`
	COE          string     `json:"coe"`
	Type         string     `json:"type"`
	URL          string     `json:"manufacturer_url"`
	ImagePath    string     `json:"image_path"`
	ImageURL     string     `json:"image_url"`
	StockType    string     `json:"stock_type"`

	*Metadata
}

// Document is the export artifact.
type Document struct {
	Version    string `json:"version"`
	Generated  string `json:"generated"`
	ItemCount  int    `json:"item_count"`
	GlassItems []Item `json:"glassitems"`
}

// NewItem projects p. Tags lose the unknown placeholder and empty entries.
func NewItem(p *model.Product, strip bool) Item {
	it := Item{
		StableID:     p.StableID,
		Manufacturer: p.Manufacturer,
		Code:         p.Code,
		Name:         p.Name,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		Description:  p.Description,
		Tags:         p.Tags.Without(UnknownTag),
		Synonyms:     p.Synonyms.Without(),
		COE:          p.COE,
		Type:         p.Type,
		URL:          p.URL,
		ImagePath:    p.ImagePath,
		ImageURL:     p.ImageURL,
		StockType:    p.StockType,
	}
	if !strip {
		md := &Metadata{Status: p.Lifecycle.Status(), AddedDate: p.AddedDate, LastSeen: p.LastSeen}
		if day, ok := p.Lifecycle.DiscontinuedDate(); ok {
			md.DiscontinuedDate = &day
		}
		it.Metadata = md
	}
	return it
}

// Build returns the export document for st, sorted by manufacturer, name and code.
func Build(st *store.Store, opts Options) Document {
	items := make([]Item, 0, st.Len())
	for _, key := range st.Keys() {
		p, _ := st.Get(key)
		if p.Lifecycle.IsDiscontinued() && !opts.IncludeDiscontinued {
			continue
		}
		items = append(items, NewItem(p, opts.StripMetadata))
	}
	slices.SortStableFunc(items, func(a, b Item) int {
		return cmp.Or(
			cmp.Compare(a.Manufacturer, b.Manufacturer),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Code, b.Code),
		)
	})
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	return Document{
		Version:    st.Version,
		Generated:  now.Format(time.RFC3339),
		ItemCount:  len(items),
		GlassItems: items,
	}
}

// WriteFile writes doc to path, creating parent directories.
func WriteFile(path string, doc Document) error {
	if err := store.WriteJSON(path, doc); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	obs.Logger.Info("export_written", "path", path, "items", doc.ItemCount, "version", doc.Version)
	return nil
}
