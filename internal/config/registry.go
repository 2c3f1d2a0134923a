package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ErrUnknownManufacturer is returned by Registry.Select for codes not in the registry.
var ErrUnknownManufacturer = errors.New("unknown manufacturer")

// Source kinds understood by the scrape package.
const (
	SourceCSV  = "csv"
	SourceJSON = "json"
	SourceHTML = "html"
)

// Selectors are CSS selectors for the html source. A value of the form
// "selector@attr" reads an attribute; "@attr" reads it from the item itself.
type Selectors struct {
	Item        string `yaml:"item"`
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	Image       string `yaml:"image"`
	Tags        string `yaml:"tags"`
}

// SourceConfig tells the scrape package where a manufacturer's rows come from.
type SourceConfig struct {
	Kind      string    `yaml:"kind"`
	URL       string    `yaml:"url"`
	Path      string    `yaml:"path"`
	Pages     []string  `yaml:"pages"`
	Rate      float64   `yaml:"rate"`
	Burst     int       `yaml:"burst"`
	Selectors Selectors `yaml:"selectors"`
}

// RowDefaults fill empty columns of every row from the manufacturer.
type RowDefaults struct {
	COE       string `yaml:"coe"`
	Type      string `yaml:"type"`
	StockType string `yaml:"stock_type"`
}

// Manufacturer is one registry entry.
type Manufacturer struct {
	Code     string       `yaml:"code"`
	Name     string       `yaml:"name"`
	Enabled  *bool        `yaml:"enabled"`
	Source   SourceConfig `yaml:"source"`
	Defaults RowDefaults  `yaml:"defaults"`
}

// IsEnabled defaults to true when the key is absent.
func (m Manufacturer) IsEnabled() bool { return m.Enabled == nil || *m.Enabled }

// Registry lists every known manufacturer in file order.
type Registry struct {
	Manufacturers []Manufacturer `yaml:"manufacturers"`
}

// LoadRegistry reads and validates the YAML manufacturer registry.
func LoadRegistry(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	reg := new(Registry)
	if err := yaml.Unmarshal(b, reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Validate checks for duplicate codes and unsupported source kinds.
func (r *Registry) Validate() error {
	seen := make(map[string]struct{}, len(r.Manufacturers))
	for i, m := range r.Manufacturers {
		if m.Code == "" {
			return fmt.Errorf("registry entry %d: missing code", i)
		}
		if _, dup := seen[m.Code]; dup {
			return fmt.Errorf("registry: duplicate manufacturer code %q", m.Code)
		}
		seen[m.Code] = struct{}{}
		switch m.Source.Kind {
		case SourceCSV, SourceJSON:
			if m.Source.URL == "" && m.Source.Path == "" {
				return fmt.Errorf("registry %s: %s source needs url or path", m.Code, m.Source.Kind)
			}
		case SourceHTML:
			if m.Source.URL == "" && len(m.Source.Pages) == 0 {
				return fmt.Errorf("registry %s: html source needs url or pages", m.Code)
			}
			if m.Source.Selectors.Item == "" || m.Source.Selectors.Code == "" {
				return fmt.Errorf("registry %s: html source needs item and code selectors", m.Code)
			}
		default:
			return fmt.Errorf("registry %s: unsupported source kind %q", m.Code, m.Source.Kind)
		}
	}
	return nil
}

// Select returns every enabled manufacturer, or just the one asked for.
// A manufacturer requested by code is returned even when disabled.
func (r *Registry) Select(code string) ([]Manufacturer, error) {
	if code != "" {
		for _, m := range r.Manufacturers {
			if m.Code == code {
				return []Manufacturer{m}, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownManufacturer, code)
	}
	var out []Manufacturer
	for _, m := range r.Manufacturers {
		if m.IsEnabled() {
			out = append(out, m)
		}
	}
	return out, nil
}

// Codes returns the manufacturer codes of ms in order.
func Codes(ms []Manufacturer) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Code
	}
	return out
}
