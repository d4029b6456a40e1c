package config

import (
	"log"

	"gopkg.in/yaml.v3"

	"campusevents/pkg/config"
)

// Config is the reminderd service configuration.
type Config struct {
	DB     config.DBConfig     `yaml:"db"`
	Redis  config.RedisConfig  `yaml:"redis"`
	MQ     config.MQConfig     `yaml:"mq"`
	Server config.ServerConfig `yaml:"server"`
	JWT    config.JWTConfig    `yaml:"jwt"`
	Mail   config.MailConfig   `yaml:"mail"`
	Cron   config.CronConfig   `yaml:"cron"`
}

// Load reads the layered yaml config and applies environment overrides.
func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideMailFromEnv(&cfg.Mail)
	config.OverrideCronFromEnv(&cfg.Cron)

	return &cfg
}
