package config

import (
	"os"
	"strconv"
)

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQConfig holds RabbitMQ connection settings.
type MQConfig struct {
	URL string `yaml:"url"`
}

// JWTConfig holds the signing secret for API tokens.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// MailConfig holds outbound email provider settings.
type MailConfig struct {
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
	BaseURL string `yaml:"base_url"`
}

// CronConfig holds the shared secret guarding scheduled endpoints.
type CronConfig struct {
	Secret string `yaml:"secret"`
}

func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

func OverrideMailFromEnv(cfg *MailConfig) {
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if from := os.Getenv("MAIL_FROM"); from != "" {
		cfg.From = from
	}
	if base := os.Getenv("MAIL_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
}

func OverrideCronFromEnv(cfg *CronConfig) {
	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}
