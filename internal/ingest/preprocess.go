package ingest

import (
	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
)

// Result is a preprocessed batch plus what each step did to it.
type Result struct {
	Rows         []model.Row
	Excluded     int
	Overridden   int
	Deduplicated int
}

// Preprocess applies exclusions, then SKU overrides, then same-URL dedup.
func Preprocess(rows []model.Row, t Tables) Result {
	var res Result
	rows, res.Excluded = Exclude(rows, t.Exclusions)
	rows, res.Overridden = Override(rows, t.Overrides)
	res.Rows, res.Deduplicated = DedupSameURL(rows)
	if res.Excluded > 0 || res.Overridden > 0 || res.Deduplicated > 0 {
		obs.Logger.Info("batch_preprocessed",
			"rows", len(res.Rows),
			"excluded", res.Excluded,
			"overridden", res.Overridden,
			"deduplicated", res.Deduplicated,
		)
	}
	return res
}

// Exclude drops rows whose manufacturer_url is in the exclusion set.
func Exclude(rows []model.Row, exclusions map[string]struct{}) ([]model.Row, int) {
	if len(exclusions) == 0 {
		return rows, 0
	}
	out := make([]model.Row, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		if _, ok := exclusions[r.URL]; ok {
			dropped++
			obs.Logger.Info("row_excluded", "manufacturer", r.Manufacturer, "code", r.Code, "name", r.Name, "url", r.URL)
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}

// Override rewrites the code of rows whose manufacturer_url has a forced SKU.
// The input slice is not modified.
func Override(rows []model.Row, overrides map[string]string) ([]model.Row, int) {
	if len(overrides) == 0 {
		return rows, 0
	}
	out := make([]model.Row, len(rows))
	copy(out, rows)
	n := 0
	for i := range out {
		sku, ok := overrides[out[i].URL]
		if !ok {
			continue
		}
		obs.Logger.Info("sku_override", "manufacturer", out[i].Manufacturer, "name", out[i].Name, "from", out[i].Code, "to", sku)
		out[i].Code = sku
		n++
	}
	return out, n
}

// DedupSameURL drops a row when an earlier row with the same key had the same
// non-empty URL. Rows with a different or empty URL are kept so DetectConflicts
// can report them.
func DedupSameURL(rows []model.Row) ([]model.Row, int) {
	first := make(map[model.Key]string, len(rows))
	out := make([]model.Row, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		k := r.Key()
		url, seen := first[k]
		if !seen {
			first[k] = r.URL
			out = append(out, r)
			continue
		}
		if r.URL != "" && r.URL == url {
			dropped++
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}
