package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"boorudl/pkg/booru"
	"boorudl/pkg/filter"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// Config holds all configuration options for boorudl
type Config struct {
	// UserAgent overrides the derived "boorudl (user <name>)" agent
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`

	// Remote sites to crawl
	Endpoints []EndpointConfig `yaml:"endpoints" json:"endpoints"`

	// Policy used by sections that leave a field out
	Defaults PolicyConfig `yaml:"defaults" json:"defaults"`

	// Tags rejected in every section unless the section ignores them
	Blacklist []string `yaml:"blacklist" json:"blacklist"`

	// Named search policies
	Sections []SectionConfig `yaml:"sections" json:"sections"`

	Output  OutputConfig  `yaml:"output" json:"output"`
	Crawl   CrawlConfig   `yaml:"crawl" json:"crawl"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// EndpointConfig describes one remote API
type EndpointConfig struct {
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	Dialect  string `yaml:"dialect,omitempty" json:"dialect,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	APIKey   string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	// FullPageSize and Limit override the dialect defaults when positive
	FullPageSize int `yaml:"full_page_size,omitempty" json:"full_page_size,omitempty"`
	Limit        int `yaml:"limit,omitempty" json:"limit,omitempty"`
}

// PolicyConfig holds the fallback values for sections
type PolicyConfig struct {
	Days         int      `yaml:"days" json:"days"`
	Ratings      []string `yaml:"ratings" json:"ratings"`
	MinScore     int64    `yaml:"min_score" json:"min_score"`
	MinFaves     int64    `yaml:"min_faves" json:"min_faves"`
	AllowedTypes []string `yaml:"allowed_types" json:"allowed_types"`
	Endpoints    []string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
}

// SectionConfig is one section as written in the file. Nil fields fall back
// to Defaults.
type SectionConfig struct {
	Name         string   `yaml:"name" json:"name"`
	Tags         []string `yaml:"tags" json:"tags"`
	Days         *int     `yaml:"days,omitempty" json:"days,omitempty"`
	Ratings      []string `yaml:"ratings,omitempty" json:"ratings,omitempty"`
	MinScore     *int64   `yaml:"min_score,omitempty" json:"min_score,omitempty"`
	MinFaves     *int64   `yaml:"min_faves,omitempty" json:"min_faves,omitempty"`
	IgnoreTags   []string `yaml:"ignore_tags,omitempty" json:"ignore_tags,omitempty"`
	AllowedTypes []string `yaml:"allowed_types,omitempty" json:"allowed_types,omitempty"`
	Endpoints    []string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory  string `yaml:"base_directory" json:"base_directory"`
	OrganizeByType bool   `yaml:"organize_by_type" json:"organize_by_type"`
}

// CrawlConfig holds crawl loop tuning
type CrawlConfig struct {
	StartCursor       int64         `yaml:"start_cursor" json:"start_cursor"`
	PostInterval      time.Duration `yaml:"post_interval" json:"post_interval"`
	LowYieldMinLoops  int           `yaml:"low_yield_min_loops" json:"low_yield_min_loops"`
	LowYieldRatio     float64       `yaml:"low_yield_ratio" json:"low_yield_ratio"`
	ConcurrentWorkers int           `yaml:"concurrent_workers" json:"concurrent_workers"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	FetchAttempts     int           `yaml:"fetch_attempts" json:"fetch_attempts"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout"`
	DownloadTimeout   time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig = logger.Config

// MetricsConfig holds the Prometheus listener configuration
type MetricsConfig struct {
	// ListenAddress enables /metrics when set, e.g. ":9090"
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Defaults: PolicyConfig{
			Days:         20,
			Ratings:      []string{"s"},
			MinScore:     20,
			MinFaves:     0,
			AllowedTypes: []string{"jpg", "png", "gif"},
		},
		Output: OutputConfig{
			BaseDirectory:  "./downloads",
			OrganizeByType: false,
		},
		Crawl: CrawlConfig{
			StartCursor:       100000000,
			PostInterval:      500 * time.Millisecond,
			LowYieldMinLoops:  5,
			LowYieldRatio:     0.10,
			ConcurrentWorkers: 1,
			RequestsPerSecond: 2,
			FetchAttempts:     1,
			RequestTimeout:    30 * time.Second,
			DownloadTimeout:   5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ExampleConfig returns the config written by "config init"
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Endpoints = []EndpointConfig{
		{Name: "danbooru", URL: "https://danbooru.donmai.us", Dialect: "danbooru"},
		{Name: "gelbooru", URL: "https://gelbooru.com", Dialect: "gelbooru"},
	}
	cfg.Blacklist = []string{"guro", "scat"}
	cfg.Sections = []SectionConfig{
		{Name: "landscapes", Tags: []string{"scenery", "no_humans"}},
	}
	return cfg
}

// UserAgentString is the User-Agent sent with every request
func (c *Config) UserAgentString() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	if len(c.Endpoints) > 0 && c.Endpoints[0].Username != "" {
		return fmt.Sprintf("boorudl (user %s)", c.Endpoints[0].Username)
	}
	return "boorudl (user unknown)"
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if ua := os.Getenv("BOORUDL_USER_AGENT"); ua != "" {
		c.UserAgent = ua
	}
	if outputDir := os.Getenv("BOORUDL_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if organize := os.Getenv("BOORUDL_ORGANIZE_BY_TYPE"); organize != "" {
		c.Output.OrganizeByType = strings.ToLower(organize) == "true"
	}
	if workers := os.Getenv("BOORUDL_WORKERS"); workers != "" {
		val, err := strconv.Atoi(workers)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOORUDL_WORKERS: %w", err))
		} else if val > 0 {
			c.Crawl.ConcurrentWorkers = val
		}
	}
	if rps := os.Getenv("BOORUDL_REQUESTS_PER_SECOND"); rps != "" {
		val, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOORUDL_REQUESTS_PER_SECOND: %w", err))
		} else {
			c.Crawl.RequestsPerSecond = val
		}
	}
	if logLevel := os.Getenv("BOORUDL_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("BOORUDL_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	if addr := os.Getenv("BOORUDL_METRICS_ADDR"); addr != "" {
		c.Metrics.ListenAddress = addr
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultPath is where "config init" writes when no path is given
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "boorudl", "config.yaml")
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	locations := []string{
		"boorudl.yaml",
		".boorudl.yaml",
		".boorudl.yml",
		DefaultPath(),
		filepath.Join(os.Getenv("HOME"), ".boorudl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if len(c.Endpoints) == 0 {
		errs = append(errs, errors.New("at least one endpoint is required"))
	}
	endpointNames := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if err := validateName(ep.Name); err != nil {
			errs = append(errs, fmt.Errorf("endpoint %d: %w", i, err))
		} else if endpointNames[ep.Name] {
			errs = append(errs, fmt.Errorf("endpoint %s: duplicate name", ep.Name))
		}
		endpointNames[ep.Name] = true

		u, err := url.Parse(ep.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("endpoint %s: url must be an absolute http(s) URL", ep.Name))
		}
		if ep.FullPageSize < 0 || ep.Limit < 0 {
			errs = append(errs, fmt.Errorf("endpoint %s: page sizes cannot be negative", ep.Name))
		}
		if (ep.Username == "") != (ep.APIKey == "") {
			errs = append(errs, fmt.Errorf("endpoint %s: username and api_key must be set together", ep.Name))
		}
	}

	if len(c.Sections) == 0 {
		errs = append(errs, errors.New("at least one section is required"))
	}
	sectionNames := make(map[string]bool, len(c.Sections))
	for i, s := range c.Sections {
		if err := validateName(s.Name); err != nil {
			errs = append(errs, fmt.Errorf("section %d: %w", i, err))
		} else if sectionNames[s.Name] {
			errs = append(errs, fmt.Errorf("section %s: duplicate name", s.Name))
		}
		sectionNames[s.Name] = true

		if len(s.Tags) == 0 {
			errs = append(errs, fmt.Errorf("section %s: tags are required", s.Name))
		}
		for _, name := range s.Endpoints {
			if !endpointNames[name] {
				errs = append(errs, fmt.Errorf("section %s: unknown endpoint %q", s.Name, name))
			}
		}
	}
	for _, name := range c.Defaults.Endpoints {
		if !endpointNames[name] {
			errs = append(errs, fmt.Errorf("defaults: unknown endpoint %q", name))
		}
	}

	// Dialects, ratings and section invariants are checked on the resolved view
	if _, err := c.Resolve(); err != nil {
		errs = append(errs, err)
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	cr := c.Crawl
	if cr.StartCursor <= 1 {
		errs = append(errs, errors.New("crawl start cursor must be greater than 1"))
	}
	if cr.PostInterval < 0 {
		errs = append(errs, errors.New("post interval cannot be negative"))
	}
	if cr.LowYieldMinLoops < 0 {
		errs = append(errs, errors.New("low yield minimum loops cannot be negative"))
	}
	if cr.LowYieldRatio < 0 || cr.LowYieldRatio > 1 {
		errs = append(errs, errors.New("low yield ratio must be between 0 and 1"))
	}
	if cr.ConcurrentWorkers <= 0 {
		errs = append(errs, errors.New("concurrent workers must be positive"))
	}
	if cr.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests per second cannot be negative"))
	}
	if cr.FetchAttempts <= 0 {
		errs = append(errs, errors.New("fetch attempts must be positive"))
	}
	if cr.RequestTimeout <= 0 || cr.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}

	if !logger.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// validateName accepts names that are safe as a single path segment
func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("name is required")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is not allowed", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("name %q must not contain path separators", name)
	case strings.Contains(name, "__"):
		return fmt.Errorf("name %q must not contain a double underscore", name)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// API keys live in this file
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Redacted returns a copy with API keys masked, for display
func (c *Config) Redacted() *Config {
	out := *c
	out.Endpoints = make([]EndpointConfig, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep.APIKey != "" {
			ep.APIKey = "********"
		}
		out.Endpoints[i] = ep
	}
	return &out
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Crawl.ConcurrentWorkers = workers
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.ListenAddress = addr
	}
	if ua, ok := flags["user-agent"].(string); ok && ua != "" {
		c.UserAgent = ua
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	cfg, err := LoadUnvalidated(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated is Load without the final Validate
func LoadUnvalidated(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".boorudl.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)
	return cfg, nil
}

// Resolved is the immutable view of a Config the crawler runs on
type Resolved struct {
	Endpoints []booru.Endpoint
	Sections  []filter.Section
	Blacklist filter.Blacklist
	// Warnings lists every section field that fell back to the defaults
	Warnings []string
}

// Resolve applies defaults and converts the file config into endpoints and sections
func (c *Config) Resolve() (*Resolved, error) {
	var errs []error
	r := &Resolved{Blacklist: filter.NewBlacklist(c.Blacklist...)}

	for _, ec := range c.Endpoints {
		dialect, err := booru.ParseDialect(ec.Dialect)
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", ec.Name, err))
			continue
		}
		r.Endpoints = append(r.Endpoints, booru.Endpoint{
			Name:         ec.Name,
			BaseURL:      strings.TrimRight(ec.URL, "/"),
			Dialect:      dialect,
			Username:     ec.Username,
			APIKey:       ec.APIKey,
			FullPageSize: ec.FullPageSize,
			Limit:        ec.Limit,
		})
	}

	d := c.Defaults
	for _, sc := range c.Sections {
		warn := func(field string, value interface{}) {
			r.Warnings = append(r.Warnings, fmt.Sprintf("section %s: %s not set, using default %v", sc.Name, field, value))
		}

		s := filter.Section{
			Name:       sc.Name,
			Tags:       sc.Tags,
			IgnoreTags: sc.IgnoreTags,
			Endpoints:  sc.Endpoints,
		}

		if sc.Days != nil {
			s.Days = *sc.Days
		} else {
			s.Days = d.Days
			warn("days", d.Days)
		}

		ratings := sc.Ratings
		if ratings == nil {
			ratings = d.Ratings
			warn("ratings", d.Ratings)
		}
		for _, raw := range ratings {
			rating, err := post.ParseRating(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("section %s: %w", sc.Name, err))
				continue
			}
			s.Ratings = append(s.Ratings, rating)
		}

		if sc.MinScore != nil {
			s.MinScore = *sc.MinScore
		} else {
			s.MinScore = d.MinScore
			warn("min_score", d.MinScore)
		}

		if sc.MinFaves != nil {
			s.MinFaves = *sc.MinFaves
		} else {
			s.MinFaves = d.MinFaves
			warn("min_faves", d.MinFaves)
		}

		if sc.AllowedTypes != nil {
			s.AllowedTypes = normalizeTypes(sc.AllowedTypes)
		} else {
			s.AllowedTypes = normalizeTypes(d.AllowedTypes)
			warn("allowed_types", d.AllowedTypes)
		}

		if len(s.Endpoints) == 0 {
			s.Endpoints = d.Endpoints
		}

		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		r.Sections = append(r.Sections, s)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
