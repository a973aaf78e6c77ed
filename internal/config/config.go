// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Promo     PromoConfig     `mapstructure:"promo"`
	Game      GameConfig      `mapstructure:"game"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Log       LogConfig       `mapstructure:"log"`
}

// HTTPConfig holds the public API listener configuration.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the Redis connection used for rate limiting.
// An empty Addr disables rate limiting.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig holds per-client request limits for public endpoints.
type RateLimitConfig struct {
	NewGamePerMinute   int `mapstructure:"new_game_per_minute"`
	GiftPromoPerMinute int `mapstructure:"gift_promo_per_minute"`
}

// TelegramConfig holds the notification channel and operator bot settings.
type TelegramConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Token        string        `mapstructure:"token"`
	ChatID       string        `mapstructure:"chat_id"`
	ChatUsername string        `mapstructure:"chat_username"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"`
	Poll         bool          `mapstructure:"poll"`
	AdminIDs     []int64       `mapstructure:"admin_ids"`
}

// PromoConfig holds voucher issuance defaults.
type PromoConfig struct {
	TTLHours   int `mapstructure:"ttl_hours"`
	DailyLimit int `mapstructure:"daily_limit"`
}

// GameConfig holds game defaults.
type GameConfig struct {
	DefaultDifficulty string `mapstructure:"default_difficulty"`
}

// TemplatesConfig holds notification message templates.
// The win template may contain a {code} placeholder.
type TemplatesConfig struct {
	Win  string `mapstructure:"win"`
	Lose string `mapstructure:"lose"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default notification templates.
const (
	DefaultWinTemplate  = "🎉 Победа! Ваш промокод: {code}\nСпасибо за игру! Делитесь удачей с друзьями."
	DefaultLoseTemplate = "😔 Сегодня не повезло, но вы молодец!\nПопробуйте ещё раз, удача любит настойчивых."
)

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., TELEGRAM_TOKEN, DATABASE_HOST, PROMO_DAILY_LIMIT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional - env vars can provide all config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "promo")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "promo")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.new_game_per_minute", 60)
	v.SetDefault("ratelimit.gift_promo_per_minute", 5)

	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.chat_username", "")
	v.SetDefault("telegram.send_timeout", "5s")
	v.SetDefault("telegram.poll", false)

	v.SetDefault("promo.ttl_hours", 72)
	v.SetDefault("promo.daily_limit", 500)

	v.SetDefault("game.default_difficulty", "medium")

	v.SetDefault("templates.win", DefaultWinTemplate)
	v.SetDefault("templates.lose", DefaultLoseTemplate)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// IsAdmin checks if a Telegram user ID may use operator commands.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
