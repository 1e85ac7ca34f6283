package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lookup   LookupConfig   `mapstructure:"lookup"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Admin    AdminConfig    `mapstructure:"admin"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	PollTimeout int    `mapstructure:"poll_timeout"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	Retention time.Duration `mapstructure:"retention"`
}

type LookupConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	DailyLimit    int           `mapstructure:"daily_limit"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	RateBurst     int           `mapstructure:"rate_burst"`
}

type BatchConfig struct {
	MaxSize   int           `mapstructure:"max_size"`
	ItemDelay time.Duration `mapstructure:"item_delay"`
}

type AdminConfig struct {
	UserIDs []int64 `mapstructure:"user_ids"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432
	if u.Port() != "" {
		if port, err = strconv.Atoi(u.Port()); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", u.Port())
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// parseIDs parses a comma separated list of Telegram user IDs.
func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 60)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "rcintel")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.retention", 7*24*time.Hour)

	v.SetDefault("lookup.endpoint", "https://vvvin-ng.vercel.app/lookup")
	v.SetDefault("lookup.daily_limit", 10)
	v.SetDefault("lookup.cache_ttl", 24*time.Hour)
	v.SetDefault("lookup.timeout", 20*time.Second)
	v.SetDefault("lookup.max_attempts", 3)
	v.SetDefault("lookup.backoff_base", time.Second)
	v.SetDefault("lookup.rate_per_second", 5.0)
	v.SetDefault("lookup.rate_burst", 5)

	v.SetDefault("batch.max_size", 10)
	v.SetDefault("batch.item_delay", 2*time.Second)

	v.SetDefault("admin.user_ids", []int64{})

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 50)
	v.SetDefault("openai.temperature", 0.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.development", false)
}

// LoadConfig reads path when it exists, then applies environment overrides.
// Nested keys map to upper-case variables with dots replaced by underscores
// (lookup.daily_limit -> LOOKUP_DAILY_LIMIT).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	for _, key := range []string{"BOT_TOKEN", "TELEGRAM_TOKEN"} {
		if token := v.GetString(key); token != "" {
			config.Telegram.Token = token
		}
	}

	if limit := v.GetString("MAX_QUERIES_PER_DAY"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_QUERIES_PER_DAY %q", limit)
		}
		config.Lookup.DailyLimit = n
	}

	if raw := v.GetString("ADMIN_IDS"); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS: %w", err)
		}
		config.Admin.UserIDs = ids
	}

	return &config, nil
}

// Validate reports the first setting that would keep the bot from running.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is not configured (set BOT_TOKEN)")
	}

	u, err := url.Parse(c.Lookup.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid lookup endpoint %q", c.Lookup.Endpoint)
	}

	switch {
	case c.Lookup.DailyLimit <= 0:
		return fmt.Errorf("lookup.daily_limit must be positive, got %d", c.Lookup.DailyLimit)
	case c.Lookup.MaxAttempts <= 0:
		return fmt.Errorf("lookup.max_attempts must be positive, got %d", c.Lookup.MaxAttempts)
	case c.Lookup.CacheTTL <= 0:
		return fmt.Errorf("lookup.cache_ttl must be positive, got %s", c.Lookup.CacheTTL)
	case c.Lookup.Timeout <= 0:
		return fmt.Errorf("lookup.timeout must be positive, got %s", c.Lookup.Timeout)
	case c.Batch.MaxSize <= 0:
		return fmt.Errorf("batch.max_size must be positive, got %d", c.Batch.MaxSize)
	case c.Redis.Enabled && c.Redis.Addr == "":
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}
