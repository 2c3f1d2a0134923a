// Package ingest cleans a scraped row batch before it reaches the store:
// URL exclusions, SKU overrides, same-URL dedup and duplicate-key detection.
package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Tables are the operator-maintained side tables keyed by manufacturer_url.
type Tables struct {
	Exclusions map[string]struct{}
	Overrides  map[string]string
}

// LoadTables reads both side tables. Missing files yield empty tables.
func LoadTables(exclusionsPath, overridesPath string) (Tables, error) {
	excl, err := LoadExclusions(exclusionsPath)
	if err != nil {
		return Tables{}, err
	}
	over, err := LoadOverrides(overridesPath)
	if err != nil {
		return Tables{}, err
	}
	return Tables{Exclusions: excl, Overrides: over}, nil
}

// LoadExclusions reads one URL per line; anything after a tab is ignored.
func LoadExclusions(path string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := readTable(path, func(key, _ string, _ bool) {
		out[key] = struct{}{}
	})
	return out, err
}

// LoadOverrides reads "url<TAB>sku" lines. Lines without exactly one tab are skipped.
func LoadOverrides(path string) (map[string]string, error) {
	out := make(map[string]string)
	err := readTable(path, func(key, value string, ok bool) {
		if ok {
			out[key] = value
		}
	})
	return out, err
}

func readTable(path string, add func(key, value string, hasValue bool)) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	if err := parseTable(f, add); err != nil {
		return fmt.Errorf("read table %s: %w", path, err)
	}
	return nil
}

func parseTable(r io.Reader, add func(key, value string, hasValue bool)) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		switch len(parts) {
		case 1:
			add(parts[0], "", false)
		case 2:
			add(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true)
		default:
			add(strings.TrimSpace(parts[0]), "", false)
		}
	}
	return sc.Err()
}
