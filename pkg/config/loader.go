package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadConfig loads <configDir>/base.yaml, merges <configDir>/<env>.yaml on top
// of it when present, and expands ${VAR} placeholders from the process
// environment. Environment-specific values always win over base values.
func LoadConfig(env, configDir string) (map[string]interface{}, error) {
	if configDir == "" {
		configDir = "config"
	}

	merged, err := loadYAMLFile(filepath.Join(configDir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	if env != "" && env != "base" {
		envFile := filepath.Join(configDir, env+".yaml")
		if _, err := os.Stat(envFile); err == nil {
			overlay, err := loadYAMLFile(envFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
			}
			merged = mergeMaps(merged, overlay)
		}
	}

	return expandPlaceholders(merged), nil
}

func loadYAMLFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var out map[string]interface{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeMaps overlays src on top of dst, merging nested maps recursively.
func mergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(dst))
	for k, v := range dst {
		result[k] = v
	}
	for k, v := range src {
		dstMap, dstOK := result[k].(map[string]interface{})
		srcMap, srcOK := v.(map[string]interface{})
		if dstOK && srcOK {
			result[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		result[k] = v
	}
	return result
}

// expandPlaceholders substitutes ${VAR} in string values from os.Environ.
// Unset variables leave the placeholder untouched so misconfiguration is
// visible in logs instead of silently becoming an empty string.
func expandPlaceholders(config map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(config))
	for k, v := range config {
		switch val := v.(type) {
		case string:
			result[k] = expandString(val)
		case map[string]interface{}:
			result[k] = expandPlaceholders(val)
		default:
			result[k] = v
		}
	}
	return result
}

func expandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return m
	})
}

// GetEnv returns the environment variable or a default.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv returns the active config environment (CONFIG_ENV, default local).
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
