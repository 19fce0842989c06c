package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port                string `mapstructure:"port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JWTCfg struct {
	HSSecret string `mapstructure:"hs_secret"`
}

type ChatCfg struct {
	AdminID         string  `mapstructure:"admin_id"`
	DefaultPageSize int64   `mapstructure:"default_page_size"`
	MaxPageSize     int64   `mapstructure:"max_page_size"`
	MaxMessageBytes int64   `mapstructure:"max_message_bytes"`
	SendPerSecond   float64 `mapstructure:"send_per_second"`
	SendBurst       int     `mapstructure:"send_burst"`
}

type Config struct {
	Development bool      `mapstructure:"development"`
	Server      ServerCfg `mapstructure:"server"`
	Mongo       MongoCfg  `mapstructure:"mongo"`
	Redis       RedisCfg  `mapstructure:"redis"`
	Kafka       KafkaCfg  `mapstructure:"kafka"`
	JWT         JWTCfg    `mapstructure:"jwt"`
	Chat        ChatCfg   `mapstructure:"chat"`

	// Derived
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load reads config.yaml (path optional) with APP_* env override,
// e.g. APP_MONGO_URI, APP_JWT_HS_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "church_platform")
	v.SetDefault("redis.prefix", "chat")
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("chat.default_page_size", 20)
	v.SetDefault("chat.max_page_size", 100)
	v.SetDefault("chat.max_message_bytes", 64*1024)
	v.SetDefault("chat.send_per_second", 5)
	v.SetDefault("chat.send_burst", 10)

	if err := v.ReadInConfig(); err != nil {
		// env-only deployments run without a config file
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	return &cfg, nil
}
