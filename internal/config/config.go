package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PaperScanner/internal/infrastructure/resilience"
	"PaperScanner/internal/infrastructure/scheduler"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "PAPER_SCANNER_CONFIG"
	databasePathEnv = "DATABASE_PATH"
	logLevelEnv     = "LOG_LEVEL"
	httpAddrEnv     = "HTTP_ADDR"
	categoriesEnv   = "ARXIV_CATEGORIES"
	cacheDaysEnv    = "CACHE_DAYS"
	botTokenEnv     = "TELEGRAM_BOT_TOKEN"
	chatIDEnv       = "TELEGRAM_CHAT_ID"

	maxPapersPerRequest = 2000
)

// Config holds high-level settings required across the application.
type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	Scheduler  SchedulerConfig   `yaml:"scheduler"`
	Source     SourceConfig      `yaml:"source"`
	Cache      CacheConfig       `yaml:"cache"`
	Matching   MatchingConfig    `yaml:"matching"`
	Resilience resilience.Policy `yaml:"resilience"`
	HTTP       HTTPConfig        `yaml:"http"`
	Logging    LoggingConfig     `yaml:"logging"`
	Notify     NotifyConfig      `yaml:"notify"`
}

// DatabaseConfig points at the SQLite cache file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when the smart refresh should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnStart     bool           `yaml:"runOnStart"`
	RunTimeout     time.Duration  `yaml:"runTimeout"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SourceConfig selects the upstream strategy and what to ask it for.
type SourceConfig struct {
	Scanner          string        `yaml:"scanner"`
	APIURL           string        `yaml:"apiUrl"`
	ListURL          string        `yaml:"listUrl"`
	Categories       []string      `yaml:"categories"`
	PapersPerRefresh int           `yaml:"papersPerRefresh"`
	SearchResults    int           `yaml:"searchResults"`
	DaysBack         int           `yaml:"daysBack"`
	RequestInterval  time.Duration `yaml:"requestInterval"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CacheConfig controls retention.
type CacheConfig struct {
	Days              int      `yaml:"days"`
	LegacyConferences []string `yaml:"legacyConferences"`
}

// MatchingConfig tunes the matcher and the default sampling floor.
type MatchingConfig struct {
	Threshold     float64 `yaml:"threshold"`
	MinConfidence float64 `yaml:"minConfidence"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// NotifyConfig enables the Telegram run digest when both token and chat are set.
type NotifyConfig struct {
	TelegramAPIURL   string `yaml:"telegramApiUrl"`
	TelegramBotToken string `yaml:"telegramBotToken"`
	TelegramChatID   string `yaml:"telegramChatId"`
}

// Enabled reports whether digests can be sent.
func (n NotifyConfig) Enabled() bool {
	return n.TelegramBotToken != "" && n.TelegramChatID != ""
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads .env and the YAML file named by PAPER_SCANNER_CONFIG (if any), merges them over the
// defaults and applies environment overrides. The result still needs Validate.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return fileCfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if len(c.Source.Categories) == 0 {
		errs = append(errs, errors.New("source.categories must not be empty"))
	}
	if c.Source.PapersPerRefresh <= 0 || c.Source.PapersPerRefresh > maxPapersPerRequest {
		errs = append(errs, fmt.Errorf("source.papersPerRefresh must be in 1..%d", maxPapersPerRequest))
	}
	if c.Source.DaysBack < 0 {
		errs = append(errs, errors.New("source.daysBack must not be negative"))
	}
	if c.Cache.Days < 0 {
		errs = append(errs, errors.New("cache.days must not be negative"))
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		errs = append(errs, errors.New("matching.threshold must be in (0, 1]"))
	}
	if c.Matching.MinConfidence < 0 || c.Matching.MinConfidence > 1 {
		errs = append(errs, errors.New("matching.minConfidence must be in [0, 1]"))
	}
	if err := scheduler.Validate(c.Scheduler.CronExpression); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(categoriesEnv); v != "" {
		c.Source.Categories = splitList(v)
	}
	if v := os.Getenv(botTokenEnv); v != "" {
		c.Notify.TelegramBotToken = v
	}
	if v := os.Getenv(chatIDEnv); v != "" {
		c.Notify.TelegramChatID = v
	}
	if v := os.Getenv(cacheDaysEnv); v != "" {
		days, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", cacheDaysEnv, v, err)
		}
		c.Cache.Days = days
	}
	return nil
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: unknown timezone %s: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	base.Scheduler.RunOnStart = base.Scheduler.RunOnStart || override.Scheduler.RunOnStart
	if override.Scheduler.RunTimeout != 0 {
		base.Scheduler.RunTimeout = override.Scheduler.RunTimeout
	}

	src := override.Source
	if src.Scanner != "" {
		base.Source.Scanner = src.Scanner
	}
	if src.APIURL != "" {
		base.Source.APIURL = src.APIURL
	}
	if src.ListURL != "" {
		base.Source.ListURL = src.ListURL
	}
	if len(src.Categories) > 0 {
		base.Source.Categories = src.Categories
	}
	if src.PapersPerRefresh != 0 {
		base.Source.PapersPerRefresh = src.PapersPerRefresh
	}
	if src.SearchResults != 0 {
		base.Source.SearchResults = src.SearchResults
	}
	if src.DaysBack != 0 {
		base.Source.DaysBack = src.DaysBack
	}
	if src.RequestInterval != 0 {
		base.Source.RequestInterval = src.RequestInterval
	}
	if src.Timeout != 0 {
		base.Source.Timeout = src.Timeout
	}

	if override.Cache.Days != 0 {
		base.Cache.Days = override.Cache.Days
	}
	if override.Cache.LegacyConferences != nil {
		base.Cache.LegacyConferences = override.Cache.LegacyConferences
	}

	if override.Matching.Threshold != 0 {
		base.Matching.Threshold = override.Matching.Threshold
	}
	if override.Matching.MinConfidence != 0 {
		base.Matching.MinConfidence = override.Matching.MinConfidence
	}

	if override.Resilience != (resilience.Policy{}) {
		base.Resilience = override.Resilience
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Notify != (NotifyConfig{}) {
		base.Notify = override.Notify
	}

	return base
}

// Default returns the built-in settings Load starts from.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database:  DatabaseConfig{Path: "papers_cache.db"},
		Scheduler: SchedulerConfig{
			CronExpression: "0 6 * * *",
			Timezone:       defaultTimezone,
			RunTimeout:     30 * time.Minute,
			location:       tz,
		},
		Source: SourceConfig{
			Scanner:          "arxiv-api",
			APIURL:           "https://export.arxiv.org/api/query",
			ListURL:          "https://arxiv.org",
			Categories:       []string{"cs.AI", "cs.LG", "cs.CV", "cs.CL", "cs.CR"},
			PapersPerRefresh: 5,
			SearchResults:    20,
			DaysBack:         90,
			RequestInterval:  3 * time.Second,
			Timeout:          30 * time.Second,
		},
		Cache: CacheConfig{
			Days:              90,
			LegacyConferences: []string{"CRYPTO", "EUROCRYPT"},
		},
		Matching:   MatchingConfig{Threshold: 0.75, MinConfidence: 0.7},
		Resilience: resilience.DefaultPolicy(),
		HTTP:       HTTPConfig{Addr: ":8080"},
		Logging:    LoggingConfig{Level: "info", Format: "text"},
	}
}
