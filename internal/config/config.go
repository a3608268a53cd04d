// Package config handles application configuration: built-in defaults, an
// optional YAML file and environment variables.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	internaldb "nadc-check/internal/db"
	"nadc-check/internal/domain"
	"nadc-check/internal/family"
)

// Defaults.
const (
	DefaultWorkers      = 4
	DefaultQueryTimeout = 30 * time.Second
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
)

// CatalogConfig locates one catalog database.
type CatalogConfig struct {
	Kind string `yaml:"kind"` // "scia" or "gosat"
	Path string `yaml:"path"`
}

// FamilyConfig declares one archive family. Hierarchy and Patterns override
// the preset when set.
type FamilyConfig struct {
	Name      string   `yaml:"name"`
	Preset    string   `yaml:"preset"`
	Catalog   string   `yaml:"catalog"`
	Pools     []string `yaml:"pools"`
	Level     string   `yaml:"level,omitempty"`
	Hierarchy []string `yaml:"hierarchy,omitempty"`
	Patterns  []string `yaml:"patterns,omitempty"`
}

// Config holds the configuration of a reconciliation run.
type Config struct {
	Catalogs map[string]CatalogConfig `yaml:"catalogs"`
	Families []FamilyConfig           `yaml:"families"`

	Workers      int           `yaml:"workers"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	QueryRPS     float64       `yaml:"query_rps"`   // 0 disables rate limiting
	QueryBurst   int           `yaml:"query_burst"` // burst capacity for QueryRPS
	LogLevel     string        `yaml:"log_level"`   // debug, info, warn, error
	LogFormat    string        `yaml:"log_format"`  // text or json
	Hostname     string        `yaml:"hostname"`    // selects local or NFS roots in GOSAT catalogs

	// File is the YAML file the configuration was read from, if any.
	File string `yaml:"-"`

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-"`
}

// Default returns the built-in configuration: the NADC catalogs and the six
// archive families.
func Default() *Config {
	return &Config{
		Catalogs: map[string]CatalogConfig{
			"scia":     {Kind: internaldb.KindScia, Path: "/SCIA/share/db/sron_scia.db"},
			"scia-lv2": {Kind: internaldb.KindScia, Path: "/SCIA/share/db/sron_scia_lv2.db"},
			"gosat":    {Kind: internaldb.KindGosat, Path: "/data/gosat/share/db/sron_gosat.db"},
		},
		Families: []FamilyConfig{
			{Name: "scia-l0l1", Preset: family.PresetSciaVersioned, Catalog: "scia",
				Pools: []string{"/SCIA/LV0_01", "/SCIA/LV1_01", "/SCIA/LV1_02"}},
			{Name: "scia-l2", Preset: family.PresetSciaDated, Catalog: "scia-lv2",
				Pools: []string{"/SCIA/LV2_01"}},
			{Name: "gosat-fts-l1", Preset: family.PresetGosatFTS, Catalog: "gosat",
				Pools: []string{"/data/gosat/LV1_01", "/data/gosat/LV1_02"}},
			{Name: "gosat-cai-l2", Preset: family.PresetGosatCAI, Catalog: "gosat",
				Pools: []string{"/data/gosat/LV2_01"}},
			{Name: "scia-l0-b", Preset: family.PresetSciaVersioned, Catalog: "scia", Level: "0",
				Pools: []string{"/SCIA/LV0_02", "/SCIA/LV0_03"}},
			{Name: "scia-l1-c", Preset: family.PresetSciaVersioned, Catalog: "scia", Level: "1",
				Pools: []string{"/SCIA/LV1_03", "/SCIA/LV1_04"}},
		},
		Workers:      DefaultWorkers,
		QueryTimeout: DefaultQueryTimeout,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// $NADC_CONFIG when path is empty) and the NADC_* environment variables,
// later sources taking precedence. A missing explicit file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("NADC_CONFIG")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if cfg.Hostname == "" {
		host, err := os.Hostname()
		if err != nil {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("hostname unknown, GOSAT roots resolve to NFS paths: %v", err))
		}
		cfg.Hostname = host
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path. Catalogs are merged by name;
// a non-empty family list replaces the built-in families.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrConfig("config file %s not found", path)
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return domain.ErrConfig("parse config %s: %v", path, err)
	}

	for name, cat := range file.Catalogs {
		if c.Catalogs == nil {
			c.Catalogs = make(map[string]CatalogConfig)
		}
		c.Catalogs[name] = cat
	}
	if len(file.Families) > 0 {
		c.Families = file.Families
	}
	if file.Workers != 0 {
		c.Workers = file.Workers
	}
	if file.QueryTimeout != 0 {
		c.QueryTimeout = file.QueryTimeout
	}
	if file.QueryRPS != 0 {
		c.QueryRPS = file.QueryRPS
	}
	if file.QueryBurst != 0 {
		c.QueryBurst = file.QueryBurst
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		c.LogFormat = file.LogFormat
	}
	if file.Hostname != "" {
		c.Hostname = file.Hostname
	}
	c.File = path
	return nil
}

// ApplyEnv overlays the NADC_* environment variables. Unparsable values are
// ignored with a warning.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NADC_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("NADC_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("NADC_HOSTNAME"); v != "" {
		c.Hostname = v
	}
	if v := os.Getenv("NADC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		} else {
			c.warnEnv("NADC_WORKERS", v)
		}
	}
	if v := os.Getenv("NADC_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.QueryTimeout = d
		} else {
			c.warnEnv("NADC_QUERY_TIMEOUT", v)
		}
	}
	if v := os.Getenv("NADC_QUERY_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.QueryRPS = f
		} else {
			c.warnEnv("NADC_QUERY_RPS", v)
		}
	}
	if v := os.Getenv("NADC_QUERY_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QueryBurst = n
		} else {
			c.warnEnv("NADC_QUERY_BURST", v)
		}
	}
}

func (c *Config) warnEnv(key, value string) {
	c.Warnings = append(c.Warnings, fmt.Sprintf("ignoring %s=%q: not a valid value", key, value))
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the run settings and the catalog and family declarations.
// Family descriptors themselves are validated by BuildFamilies.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return domain.ErrConfig("workers must be at least 1, got %d", c.Workers)
	}
	if c.QueryTimeout <= 0 {
		return domain.ErrConfig("query timeout must be positive, got %s", c.QueryTimeout)
	}
	if c.QueryRPS < 0 {
		return domain.ErrConfig("query rate must not be negative")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return domain.ErrConfig("unsupported log format %q: use 'text' or 'json'", c.LogFormat)
	}

	for _, name := range c.CatalogNames() {
		cat := c.Catalogs[name]
		if cat.Kind != internaldb.KindScia && cat.Kind != internaldb.KindGosat {
			return domain.ErrConfig("catalog %q: unknown kind %q", name, cat.Kind)
		}
		if cat.Path == "" {
			return domain.ErrConfig("catalog %q: path is required", name)
		}
	}

	seen := make(map[string]bool, len(c.Families))
	for _, f := range c.Families {
		if seen[f.Name] {
			return domain.ErrConfig("family %q is declared twice", f.Name)
		}
		seen[f.Name] = true
		if _, ok := c.Catalogs[f.Catalog]; !ok {
			return domain.ErrConfig("family %q: catalog %q is not configured", f.Name, f.Catalog)
		}
	}
	return nil
}

// CatalogNames returns the configured catalog names in sorted order.
func (c *Config) CatalogNames() []string {
	names := make([]string, 0, len(c.Catalogs))
	for name := range c.Catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildFamilies builds the descriptors of the named families, in the order given.
// With no names every configured family is built, in declaration order.
func (c *Config) BuildFamilies(names ...string) ([]domain.FamilyDescriptor, error) {
	selected := c.Families
	if len(names) > 0 {
		byName := make(map[string]FamilyConfig, len(c.Families))
		for _, f := range c.Families {
			byName[f.Name] = f
		}
		selected = make([]FamilyConfig, 0, len(names))
		for _, name := range names {
			f, ok := byName[name]
			if !ok {
				return nil, domain.ErrConfig("unknown family %q", name)
			}
			selected = append(selected, f)
		}
	}

	out := make([]domain.FamilyDescriptor, 0, len(selected))
	for _, f := range selected {
		d, err := family.New(f.Spec())
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Spec converts the declaration to a family.Spec.
func (f FamilyConfig) Spec() family.Spec {
	var hierarchy []domain.LevelKind
	for _, h := range f.Hierarchy {
		hierarchy = append(hierarchy, domain.LevelKind(h))
	}
	return family.Spec{
		Name:         f.Name,
		Preset:       f.Preset,
		Catalog:      f.Catalog,
		PoolRoots:    f.Pools,
		Level:        f.Level,
		Hierarchy:    hierarchy,
		LeafPatterns: f.Patterns,
	}
}

// envPrefix namespaces every variable the tool reads from the environment.
const envPrefix = "NADC_"

// LoadDotEnv copies NADC_* assignments from a dotenv file into the process
// environment without overriding variables that already hold a value. A missing
// file is not an error. Lines that are not an NADC_* assignment are left out
// and reported in the returned warnings.
func LoadDotEnv(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	var warnings []string
	scanner := bufio.NewScanner(f)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		key = strings.TrimSpace(key)
		switch {
		case !ok:
			warnings = append(warnings, fmt.Sprintf("%s:%d: not a KEY=VALUE line", path, lineNo))
			continue
		case !strings.HasPrefix(key, envPrefix):
			warnings = append(warnings, fmt.Sprintf("%s:%d: ignoring %s, only %s* variables are read", path, lineNo, key, envPrefix))
			continue
		}
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, dotEnvValue(strings.TrimSpace(value))); err != nil {
			return warnings, fmt.Errorf("setenv %s: %w", key, err)
		}
	}
	return warnings, scanner.Err()
}

// dotEnvValue unquotes a value. Double quotes honour Go escapes, single quotes
// are taken literally.
func dotEnvValue(s string) string {
	if len(s) < 2 {
		return s
	}
	switch {
	case s[0] == '"' && s[len(s)-1] == '"':
		if v, err := strconv.Unquote(s); err == nil {
			return v
		}
		return s[1 : len(s)-1]
	case s[0] == '\'' && s[len(s)-1] == '\'':
		return s[1 : len(s)-1]
	}
	return s
}
