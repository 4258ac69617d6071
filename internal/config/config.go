package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"social_autoposter/internal/domain"
)

type Config struct {
	Database  DatabaseConfig            `yaml:"database"`
	RabbitMQ  RabbitMQConfig            `yaml:"rabbitmq"`
	Redis     RedisConfig               `yaml:"redis"`
	RateLimit RateLimitConfig           `yaml:"rate_limit"`
	Schedule  ScheduleConfig            `yaml:"schedule"`
	Batch     BatchConfig               `yaml:"batch"`
	Generator GeneratorConfig           `yaml:"generator"`
	Platforms map[string]PlatformConfig `yaml:"platforms"`
	Publish   PublishConfig             `yaml:"publish"`
	HTTP      HTTPConfig                `yaml:"http"`
	Themes    []string                  `yaml:"themes"`
	LogLevel  string                    `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RabbitMQConfig configures post outcome events. An empty URL disables them.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type RateLimitConfig struct {
	// Backend is "memory" or "redis".
	Backend        string         `yaml:"backend"`
	MaxPostsPerDay int            `yaml:"max_posts_per_day"`
	PerPlatform    map[string]int `yaml:"per_platform"`
}

type ScheduleConfig struct {
	PollInterval      time.Duration    `yaml:"poll_interval"`
	StopTimeout       time.Duration    `yaml:"stop_timeout"`
	BatchInterval     time.Duration    `yaml:"batch_interval"`
	AnalyticsInterval time.Duration    `yaml:"analytics_interval"`
	HealthInterval    time.Duration    `yaml:"health_interval"`
	CleanupAt         string           `yaml:"cleanup_at"`
	FailedRetention   time.Duration    `yaml:"failed_retention"`
	JobTimeout        time.Duration    `yaml:"job_timeout"`
	StatsWindow       time.Duration    `yaml:"stats_window"`
	OptimalHours      map[string][]int `yaml:"optimal_hours"`
}

type BatchConfig struct {
	PerCombination int `yaml:"per_combination"`
	Concurrency    int `yaml:"concurrency"`
}

type GeneratorConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
}

type PlatformConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	AccountID   string `yaml:"account_id"`
	// DryRun publishes nowhere and returns synthetic post ids.
	DryRun bool `yaml:"dry_run"`
}

type PublishConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultOptimalHours is the engagement table used when a platform has no
// configured hours.
var DefaultOptimalHours = map[string][]int{
	string(domain.Twitter):   {8, 12, 17, 20},
	string(domain.Facebook):  {9, 13, 15, 19},
	string(domain.Instagram): {11, 14, 17, 19},
	string(domain.LinkedIn):  {8, 12, 14, 17},
	string(domain.TikTok):    {16, 18, 20, 22},
}

var DefaultThemes = []string{"technology", "business", "motivation", "lifestyle"}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment references in raw YAML and decodes it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "social_autoposter"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "posts"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "post_outcomes"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "autoposter:history"
	}
	if c.RateLimit.Backend == "" {
		c.RateLimit.Backend = "memory"
	}
	if c.RateLimit.MaxPostsPerDay == 0 {
		c.RateLimit.MaxPostsPerDay = 6
	}
	if c.Schedule.PollInterval == 0 {
		c.Schedule.PollInterval = time.Minute
	}
	if c.Schedule.StopTimeout == 0 {
		c.Schedule.StopTimeout = 5 * time.Second
	}
	if c.Schedule.BatchInterval == 0 {
		c.Schedule.BatchInterval = 30 * time.Minute
	}
	if c.Schedule.AnalyticsInterval == 0 {
		c.Schedule.AnalyticsInterval = 2 * time.Hour
	}
	if c.Schedule.HealthInterval == 0 {
		c.Schedule.HealthInterval = time.Hour
	}
	if c.Schedule.StatsWindow == 0 {
		c.Schedule.StatsWindow = 7 * 24 * time.Hour
	}
	if c.Schedule.CleanupAt == "" {
		c.Schedule.CleanupAt = "02:00"
	}
	if c.Schedule.FailedRetention == 0 {
		c.Schedule.FailedRetention = 7 * 24 * time.Hour
	}
	if c.Schedule.JobTimeout == 0 {
		c.Schedule.JobTimeout = 5 * time.Minute
	}
	if c.Schedule.OptimalHours == nil {
		c.Schedule.OptimalHours = make(map[string][]int)
	}
	for platform, hours := range DefaultOptimalHours {
		if len(c.Schedule.OptimalHours[platform]) == 0 {
			c.Schedule.OptimalHours[platform] = append([]int(nil), hours...)
		}
	}
	for _, hours := range c.Schedule.OptimalHours {
		sort.Ints(hours)
	}
	if c.Batch.PerCombination == 0 {
		c.Batch.PerCombination = 2
	}
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = 4
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "gpt-4o-mini"
	}
	if c.Generator.Temperature == 0 {
		c.Generator.Temperature = 0.8
	}
	if c.Generator.MaxTokens == 0 {
		c.Generator.MaxTokens = 200
	}
	if c.Generator.Timeout == 0 {
		c.Generator.Timeout = 30 * time.Second
	}
	if c.Generator.Concurrency == 0 {
		c.Generator.Concurrency = 5
	}
	if c.Publish.Timeout == 0 {
		c.Publish.Timeout = 30 * time.Second
	}
	if c.Publish.MaxAttempts == 0 {
		c.Publish.MaxAttempts = 3
	}
	if c.Publish.InitialBackoff == 0 {
		c.Publish.InitialBackoff = 1 * time.Second
	}
	if c.Publish.MaxBackoff == 0 {
		c.Publish.MaxBackoff = 8 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if len(c.Themes) == 0 {
		c.Themes = append([]string(nil), DefaultThemes...)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error

	for platform, hours := range c.Schedule.OptimalHours {
		if !domain.Platform(platform).Valid() {
			errs = append(errs, fmt.Errorf("optimal_hours: unknown platform %q", platform))
		}
		for _, h := range hours {
			if h < 0 || h > 23 {
				errs = append(errs, fmt.Errorf("optimal_hours: %s hour %d out of range", platform, h))
			}
		}
	}
	for platform, limit := range c.RateLimit.PerPlatform {
		if !domain.Platform(platform).Valid() {
			errs = append(errs, fmt.Errorf("rate_limit: unknown platform %q", platform))
		}
		if limit < 0 {
			errs = append(errs, fmt.Errorf("rate_limit: %s limit must not be negative", platform))
		}
	}
	for platform := range c.Platforms {
		if !domain.Platform(platform).Valid() {
			errs = append(errs, fmt.Errorf("platforms: unknown platform %q", platform))
		}
	}
	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		errs = append(errs, fmt.Errorf("rate_limit: unknown backend %q", c.RateLimit.Backend))
	}
	if c.RateLimit.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("rate_limit: redis backend requires redis.addr"))
	}
	if _, _, err := c.Schedule.CleanupClock(); err != nil {
		errs = append(errs, err)
	}
	for name, d := range map[string]time.Duration{
		"poll_interval":      c.Schedule.PollInterval,
		"stop_timeout":       c.Schedule.StopTimeout,
		"batch_interval":     c.Schedule.BatchInterval,
		"analytics_interval": c.Schedule.AnalyticsInterval,
		"health_interval":    c.Schedule.HealthInterval,
		"failed_retention":   c.Schedule.FailedRetention,
		"job_timeout":        c.Schedule.JobTimeout,
		"stats_window":       c.Schedule.StatsWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("schedule: %s must be positive, got %s", name, d))
		}
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, errors.New("batch: concurrency must be positive"))
	}

	return errors.Join(errs...)
}

// CleanupClock parses CleanupAt as HH:MM.
func (s ScheduleConfig) CleanupClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.CleanupAt)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule: cleanup_at %q: %w", s.CleanupAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

// EnabledPlatforms returns configured platforms with enabled set, in the
// canonical platform order.
func (c *Config) EnabledPlatforms() []domain.Platform {
	var out []domain.Platform
	for _, p := range domain.AllPlatforms {
		if pc, ok := c.Platforms[string(p)]; ok && pc.Enabled {
			out = append(out, p)
		}
	}
	return out
}
