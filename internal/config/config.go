package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nyctaxi/internal/trips"
)

// Config holds pipeline configuration from environment variables.
type Config struct {
	ListingURL string // Page listing the downloadable trip files
	BaseURL    string // Origin that root-relative links resolve against
	Year       int
	Extension  string

	DataDir      string
	ProcessedDir string

	DBDriver  string // sqlite3, pgx or mysql
	DBDSN     string
	BatchSize int

	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	HTTPTimeout    time.Duration

	LogLevel     string
	VariantsFile string // Optional YAML file replacing or adding variants
	Variants     []trips.Variant
}

// Load reads configuration from the environment, after merging an optional
// .env file in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListingURL:     envStr("NYCTAXI_LISTING_URL", "https://www.nyc.gov/site/tlc/about/tlc-trip-record-data.page"),
		BaseURL:        envStr("NYCTAXI_BASE_URL", "https://www.nyc.gov"),
		Year:           envInt("NYCTAXI_YEAR", 2019),
		Extension:      envStr("NYCTAXI_EXTENSION", ".parquet"),
		DataDir:        envStr("NYCTAXI_DATA_DIR", "./data"),
		ProcessedDir:   envStr("NYCTAXI_PROCESSED_DIR", "./processed"),
		DBDriver:       envStr("NYCTAXI_DB_DRIVER", "sqlite3"),
		DBDSN:          envStr("NYCTAXI_DB_DSN", "./taxi_data.db"),
		BatchSize:      envInt("NYCTAXI_BATCH_SIZE", 1000),
		MaxAttempts:    envInt("NYCTAXI_MAX_ATTEMPTS", 10),
		BackoffInitial: envDuration("NYCTAXI_BACKOFF_INITIAL", 2*time.Second),
		BackoffMax:     envDuration("NYCTAXI_BACKOFF_MAX", 60*time.Second),
		HTTPTimeout:    envDuration("NYCTAXI_HTTP_TIMEOUT", 10*time.Second),
		LogLevel:       envStr("NYCTAXI_LOG_LEVEL", "info"),
		VariantsFile:   envStr("NYCTAXI_VARIANTS_FILE", ""),
		Variants:       trips.DefaultVariants(),
	}

	if cfg.VariantsFile != "" {
		if err := cfg.loadVariantsFile(cfg.VariantsFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

type variantsFile struct {
	Variants []trips.Variant `yaml:"variants"`
}

// loadVariantsFile merges variants from a YAML file. A variant with the name
// of an existing one replaces it; others are appended.
func (c *Config) loadVariantsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read variants file: %w", err)
	}
	var f variantsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse variants file %s: %w", path, err)
	}

	for _, v := range f.Variants {
		if v.DurationUnit == "" {
			v.DurationUnit = trips.Hours
		}
		if v.LoadMode == "" {
			v.LoadMode = trips.ModeAppend
		}
		replaced := false
		for i := range c.Variants {
			if c.Variants[i].Name == v.Name {
				c.Variants[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			c.Variants = append(c.Variants, v)
		}
	}
	return nil
}

// Validate checks the values the pipeline relies on.
func (c *Config) Validate() error {
	if c.Year <= 0 {
		return fmt.Errorf("year must be positive, got %d", c.Year)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.BackoffInitial < 0 || c.BackoffMax < c.BackoffInitial {
		return fmt.Errorf("invalid backoff bounds %s..%s", c.BackoffInitial, c.BackoffMax)
	}
	switch c.DBDriver {
	case "sqlite3", "pgx", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	names := make(map[string]bool, len(c.Variants))
	for i := range c.Variants {
		v := &c.Variants[i]
		if err := v.Validate(); err != nil {
			return err
		}
		if names[v.Name] {
			return fmt.Errorf("duplicate variant %q", v.Name)
		}
		names[v.Name] = true
	}
	return nil
}

// Variant looks up a variant by name.
func (c *Config) Variant(name string) (*trips.Variant, bool) {
	for i := range c.Variants {
		if strings.EqualFold(c.Variants[i].Name, name) {
			return &c.Variants[i], true
		}
	}
	return nil, false
}

// SelectVariant narrows Variants to the named one so a run touches only that
// dataset.
func (c *Config) SelectVariant(name string) error {
	v, ok := c.Variant(name)
	if !ok {
		return fmt.Errorf("unknown variant %q", name)
	}
	c.Variants = []trips.Variant{*v}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
