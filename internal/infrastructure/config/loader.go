package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from environment variables before they are mapped to keys
	EnvPrefix = "PRODUCTS_"

	// azureWebJobsStorage holds the storage account connection string of a Functions app
	azureWebJobsStorage = "AzureWebJobsStorage"
	// customHandlerPort is the port the Functions host forwards requests to
	customHandlerPort = "FUNCTIONS_CUSTOMHANDLER_PORT"

	defaultConfigFile = "config.yaml"
	defaultEnvFile    = ".env"
)

func defaults() map[string]any {
	return map[string]any{
		"server.host":               "0.0.0.0",
		"server.port":               8080,
		"server.routePrefix":        "/api",
		"server.maxBodyBytes":       int64(1 << 20),
		"server.timeout.read":       15 * time.Second,
		"server.timeout.write":      15 * time.Second,
		"server.timeout.idle":       60 * time.Second,
		"server.timeout.readHeader": 5 * time.Second,

		"storage.backend":          BackendAzTable,
		"storage.tableName":        "products",
		"storage.connectionString": "",
		"storage.databaseUrl":      "",
		"storage.pageSize":         1000,
		"storage.connectTimeout":   10 * time.Second,

		"log.level": "info",

		"otlp.enabled":     false,
		"otlp.endpoint":    "localhost:4317",
		"otlp.serviceName": "products-func",
		"otlp.environment": "development",

		"metrics.durationMilliseconds": false,

		"shutdown.timeout": 10 * time.Second,
	}
}

// Load reads config.yaml and .env from the working directory
func Load() (*Config, error) {
	return LoadFrom(defaultConfigFile, defaultEnvFile)
}

// LoadFrom builds the configuration from, in increasing priority: defaults,
// the YAML file, the dotenv file and PRODUCTS_ prefixed environment variables.
// Missing files are skipped.
func LoadFrom(configFile, envFile string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	base := defaults()
	if err := k.Load(confmap.Provider(base, "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	// 2. YAML file
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config file '%s': %v", configFile, err)
		}
	}

	// Environment keys arrive upper-cased; map them back onto the
	// camelCase keys declared in the defaults.
	canonical := make(map[string]string, len(base))
	for key := range base {
		canonical[strings.ToLower(key)] = key
	}
	envTransformer := func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		key = strings.ReplaceAll(key, "_", ".")
		if c, ok := canonical[key]; ok {
			return c
		}
		return key
	}

	// 3. dotenv file
	if envFileMap, err := godotenv.Read(envFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if !strings.HasPrefix(key, EnvPrefix) {
				continue
			}
			envMap[envTransformer(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 4. System environment, the highest priority
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := applyFunctionsHost(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyFunctionsHost picks up the settings the Azure Functions host injects
func applyFunctionsHost(cfg *Config) error {
	if cfg.Storage.ConnectionString == "" {
		cfg.Storage.ConnectionString = os.Getenv(azureWebJobsStorage)
	}

	if port := os.Getenv(customHandlerPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", customHandlerPort, port, err)
		}
		cfg.Server.Port = p
	}
	return nil
}
