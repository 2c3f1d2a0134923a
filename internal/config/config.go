// Package config provides runtime configuration values for the updater.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds file locations, scrape limits and HTTP server knobs.
type Config struct {
	DatabaseFile      string
	ExcludedURLsFile  string
	SKUOverridesFile  string
	ManufacturersFile string
	BatchCSV          string
	ExportPath        string

	ScrapeWorkers int
	ScrapeTimeout time.Duration
	HTTPTimeout   time.Duration
	UserAgent     string

	LogLevel        string
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	workers := atoienv("SCRAPE_WORKERS", 12)
	if workers < 1 {
		workers = 1
	}
	return Config{
		DatabaseFile:      getenv("DATABASE_FILE", "glass_database.json"),
		ExcludedURLsFile:  getenv("EXCLUDED_URLS_FILE", "excluded_urls.txt"),
		SKUOverridesFile:  getenv("SKU_OVERRIDES_FILE", "sku_overrides.txt"),
		ManufacturersFile: getenv("MANUFACTURERS_FILE", "manufacturers.yaml"),
		BatchCSV:          getenv("BATCH_CSV", "combined_glass_products_temp.csv"),
		ExportPath:        getenv("EXPORT_PATH", ""),
		ScrapeWorkers:     workers,
		ScrapeTimeout:     durenvs("SCRAPE_TIMEOUT", 300),
		HTTPTimeout:       durenvs("HTTP_TIMEOUT", 30),
		UserAgent:         getenv("USER_AGENT", "glass-catalog-updater/1.0"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:   durenvs("SHUTDOWN_TIMEOUT", 15),
	}
}
