// Package model defines domain types used by the updater.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for added_date, last_seen and discontinued_date.
const DateLayout = "2006-01-02"

// Day formats t as a calendar day.
func Day(t time.Time) string { return t.Format(DateLayout) }

// ErrInvalidKey is returned by ParseKey for strings without a manufacturer prefix.
var ErrInvalidKey = errors.New("invalid product key")

// Key identifies a product across scrape runs.
type Key struct {
	Manufacturer string
	Code         string
}

// String serializes the key as "MFR:CODE".
func (k Key) String() string { return k.Manufacturer + ":" + k.Code }

// ParseKey splits a serialized key at the first colon.
func ParseKey(s string) (Key, error) {
	mfr, code, ok := strings.Cut(s, ":")
	if !ok || mfr == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Key{Manufacturer: mfr, Code: code}, nil
}

// Row is one scraped product as it appears in the combined CSV.
// Tags and synonyms keep the legacy quoted comma-joined form.
type Row struct {
	Manufacturer string `csv:"manufacturer" json:"manufacturer"`
	Code         string `csv:"code" json:"code"`
	Name         string `csv:"name" json:"name"`
	StartDate    string `csv:"start_date" json:"start_date"`
	EndDate      string `csv:"end_date" json:"end_date"`
	Description  string `csv:"manufacturer_description" json:"manufacturer_description"`
	Tags         string `csv:"tags" json:"tags"`
	Synonyms     string `csv:"synonyms" json:"synonyms"`
	COE          string `csv:"coe" json:"coe"`
	Type         string `csv:"type" json:"type"`
	URL          string `csv:"manufacturer_url" json:"manufacturer_url"`
	ImagePath    string `csv:"image_path" json:"image_path"`
	ImageURL     string `csv:"image_url" json:"image_url"`
	StockType    string `csv:"stock_type" json:"stock_type"`

	// Columns lists the catalog columns the batch carried for this row.
	// Nil means all of them.
	Columns []string `csv:"-" json:"-"`
}

// CatalogColumns are the columns Merge compares, in CSV order.
var CatalogColumns = []string{
	"name", "start_date", "end_date", "manufacturer_description", "tags", "synonyms",
	"coe", "type", "manufacturer_url", "image_path", "image_url", "stock_type",
}

// PresentColumns returns the catalog columns found in keys, or nil when none is missing.
func PresentColumns(keys []string) []string {
	var out []string
	for _, c := range CatalogColumns {
		if slices.Contains(keys, c) {
			out = append(out, c)
		}
	}
	if len(out) == len(CatalogColumns) {
		return nil
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// Has reports whether the batch carried column col.
func (r Row) Has(col string) bool {
	return r.Columns == nil || slices.Contains(r.Columns, col)
}

// MarkPresent records col as carried by the row.
func (r *Row) MarkPresent(col string) {
	if r.Has(col) {
		return
	}
	r.Columns = append(slices.Clone(r.Columns), col)
}

// Key returns the product key of the row.
func (r Row) Key() Key { return Key{Manufacturer: r.Manufacturer, Code: r.Code} }

// Product is the persisted record for one product key.
type Product struct {
	Manufacturer string `json:"manufacturer"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Description  string `json:"manufacturer_description"`
	Tags         List   `json:"tags"`
	Synonyms     List   `json:"synonyms"`
	COE          string `json:"coe"`
	Type         string `json:"type"`
	URL          string `json:"manufacturer_url"`
	ImagePath    string `json:"image_path"`
	ImageURL     string `json:"image_url"`
	StockType    string `json:"stock_type"`

	Lifecycle Lifecycle `json:"-"`
	AddedDate string    `json:"added_date"`
	LastSeen  string    `json:"last_seen"`
	StableID  string    `json:"stable_id,omitempty"`
}

// NewProduct converts a row into a product carrying only catalog fields.
func NewProduct(r Row) *Product {
	return &Product{
		Manufacturer: r.Manufacturer,
		Code:         r.Code,
		Name:         r.Name,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		Description:  r.Description,
		Tags:         ParseList(r.Tags),
		Synonyms:     ParseList(r.Synonyms),
		COE:          r.COE,
		Type:         r.Type,
		URL:          r.URL,
		ImagePath:    r.ImagePath,
		ImageURL:     r.ImageURL,
		StockType:    r.StockType,
	}
}

// Key returns the product key.
func (p *Product) Key() Key { return Key{Manufacturer: p.Manufacturer, Code: p.Code} }

// Row renders the catalog fields back into the CSV form.
func (p *Product) Row() Row {
	return Row{
		Manufacturer: p.Manufacturer,
		Code:         p.Code,
		Name:         p.Name,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		Description:  p.Description,
		Tags:         FormatList(p.Tags),
		Synonyms:     FormatList(p.Synonyms),
		COE:          p.COE,
		Type:         p.Type,
		URL:          p.URL,
		ImagePath:    p.ImagePath,
		ImageURL:     p.ImageURL,
		StockType:    p.StockType,
	}
}

// Merge copies every catalog field of src that differs from p and returns
// the changed field names in CSV column order. Only columns listed in
// columns are compared; nil compares all of them. Identity fields are not touched.
func (p *Product) Merge(src *Product, columns []string) []string {
	var changed []string
	has := func(name string) bool { return columns == nil || slices.Contains(columns, name) }
	str := func(name string, dst *string, v string) {
		if has(name) && *dst != v {
			*dst = v
			changed = append(changed, name)
		}
	}
	list := func(name string, dst *List, v List) {
		if has(name) && !dst.Equal(v) {
			*dst = v.Clone()
			changed = append(changed, name)
		}
	}
	str("name", &p.Name, src.Name)
	str("start_date", &p.StartDate, src.StartDate)
	str("end_date", &p.EndDate, src.EndDate)
	str("manufacturer_description", &p.Description, src.Description)
	list("tags", &p.Tags, src.Tags)
	list("synonyms", &p.Synonyms, src.Synonyms)
	str("coe", &p.COE, src.COE)
	str("type", &p.Type, src.Type)
	str("manufacturer_url", &p.URL, src.URL)
	str("image_path", &p.ImagePath, src.ImagePath)
	str("image_url", &p.ImageURL, src.ImageURL)
	str("stock_type", &p.StockType, src.StockType)
	return changed
}
