package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces the service's environment variables, e.g.
// SCRIBE_PIPELINE_CHUNKING_OVERLAP_SECONDS.
const envPrefix = "SCRIBE_"

// Load reads configuration once, in layers: an optional config.yml, an
// optional .env file, then SCRIBE_-prefixed environment variables, which win.
// Defaults are applied and the result validated.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	if envFile := findEnvFile(); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "[config] warning: failed to load %s: %v\n", envFile, err)
		}
	}

	bindEnvVars(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// findConfigFile searches for config.yml in standard locations.
func findConfigFile() string {
	searchPaths := []string{
		"./config.yml",
		"./config/config.yml",
		"./cmd/scribed/config.yml",
	}
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// findEnvFile searches for a .env file in standard locations.
func findEnvFile() string {
	for _, path := range []string{".env.scribed", ".env"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// bindEnvVars sets every SCRIBE_-prefixed environment variable into viper,
// converting UNDERSCORE_CASE to the nested dot keys viper unmarshals. Both
// the fully-dotted form and progressively less nested forms are set, so
// SCRIBE_ENGINES_CLOVA_SECRET_KEY reaches engines.clova.secret_key.
func bindEnvVars(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(pair[0], envPrefix))
		for _, variant := range keyVariants(key) {
			v.Set(variant, pair[1])
		}
	}
}

// keyVariants generates the nested key spellings an underscore env key can
// map to: every split point between dotted prefix and underscored suffix.
func keyVariants(lowerKey string) []string {
	parts := strings.Split(lowerKey, "_")
	if len(parts) <= 1 {
		return []string{lowerKey}
	}

	variants := []string{strings.ReplaceAll(lowerKey, "_", ".")}
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}
	return variants
}
