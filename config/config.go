package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	WorkerPool WorkerPoolConfig `mapstructure:"worker_pool"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Rules      RulesConfig      `mapstructure:"rules"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ReminderTopic string   `mapstructure:"reminder_topic"`
	EventTopic    string   `mapstructure:"event_topic"`
	GroupID       string   `mapstructure:"group_id"`
}

type RateLimitConfig struct {
	APIPerMinute   int `mapstructure:"api_per_minute"`
	LoginPerMinute int `mapstructure:"login_per_minute"`
}

type WorkerPoolConfig struct {
	Size      int `mapstructure:"size"`
	QueueSize int `mapstructure:"queue_size"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// RulesConfig holds the business rule knobs consumed by the validation layer
// and the cycle engine. Amounts are in minor currency units (kobo).
type RulesConfig struct {
	MinMembers           int   `mapstructure:"min_members"`
	MaxMembers           int   `mapstructure:"max_members"`
	MinContribution      int64 `mapstructure:"min_contribution"`
	MaxContribution      int64 `mapstructure:"max_contribution"`
	GraceDays            int   `mapstructure:"grace_days"`
	ProcessingFeeBps     int64 `mapstructure:"processing_fee_bps"`
	PayoutMaxRetries     int   `mapstructure:"payout_max_retries"`
	MissedPaymentWarning int   `mapstructure:"missed_payment_warning"`
	AdvanceRetries       int   `mapstructure:"advance_retries"`
	ReminderTTLHours     int   `mapstructure:"reminder_ttl_hours"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// setDefaults provides sane business-rule defaults so a minimal config file
// still produces a working engine.
func setDefaults(v *viper.Viper) {
	v.SetDefault("rules.min_members", 2)
	v.SetDefault("rules.max_members", 50)
	v.SetDefault("rules.min_contribution", 50000)     // ₦500
	v.SetDefault("rules.max_contribution", 100000000) // ₦1,000,000
	v.SetDefault("rules.grace_days", 2)
	v.SetDefault("rules.processing_fee_bps", 50) // 0.5%
	v.SetDefault("rules.payout_max_retries", 3)
	v.SetDefault("rules.missed_payment_warning", 2)
	v.SetDefault("rules.advance_retries", 3)
	v.SetDefault("rules.reminder_ttl_hours", 20)
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("jwt.refresh_hours", 72)
}
