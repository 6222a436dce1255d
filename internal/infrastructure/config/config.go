package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendAzTable  = "aztable"
	BackendPostgres = "postgres"
)

// postgresTableName is the only table the embedded postgres migrations create
const postgresTableName = "products"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Log      LogConfig      `koanf:"log"`
	OTLP     OTLPConfig     `koanf:"otlp"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Shutdown ShutdownConfig `koanf:"shutdown"`
}

type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port" validate:"min=1,max=65535"`
	RoutePrefix  string `koanf:"routePrefix" validate:"omitempty,startswith=/"`
	MaxBodyBytes int64  `koanf:"maxBodyBytes" validate:"gte=0"`
	Timeout      struct {
		Read       time.Duration `koanf:"read" validate:"gt=0"`
		Write      time.Duration `koanf:"write" validate:"gt=0"`
		Idle       time.Duration `koanf:"idle" validate:"gt=0"`
		ReadHeader time.Duration `koanf:"readHeader" validate:"gt=0"`
	} `koanf:"timeout"`
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StorageConfig struct {
	Backend          string        `koanf:"backend" validate:"oneof=memory aztable postgres"`
	TableName        string        `koanf:"tableName" validate:"required,alphanum,min=3,max=63"`
	ConnectionString string        `koanf:"connectionString" validate:"required_if=Backend aztable"`
	DatabaseURL      string        `koanf:"databaseUrl" validate:"required_if=Backend postgres"`
	PageSize         int           `koanf:"pageSize" validate:"min=1,max=1000"`
	ConnectTimeout   time.Duration `koanf:"connectTimeout" validate:"gt=0"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type OTLPConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string `koanf:"serviceName" validate:"required"`
	Environment string `koanf:"environment"`
}

type MetricsConfig struct {
	// DurationMilliseconds adds the http.server.request.duration.ms histogram
	DurationMilliseconds bool `koanf:"durationMilliseconds"`
}

type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Validate checks field constraints and the backend specific requirements
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			msgs := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if !unicode.IsLetter(rune(c.Storage.TableName[0])) {
		return fmt.Errorf("invalid configuration: storage.tableName must start with a letter: %q", c.Storage.TableName)
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.TableName != postgresTableName {
		return fmt.Errorf("invalid configuration: the postgres backend only supports storage.tableName %q", postgresTableName)
	}
	return nil
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString("\n--- Server Configuration ---\n")
	b.WriteString(fmt.Sprintf("  server.host: %s\n", c.Server.Host))
	b.WriteString(fmt.Sprintf("  server.port: %d\n", c.Server.Port))
	b.WriteString(fmt.Sprintf("  server.routePrefix: %s\n", c.Server.RoutePrefix))
	b.WriteString(fmt.Sprintf("  server.maxBodyBytes: %d\n", c.Server.MaxBodyBytes))
	b.WriteString(fmt.Sprintf("  server.timeout.read: %v\n", c.Server.Timeout.Read))
	b.WriteString(fmt.Sprintf("  server.timeout.write: %v\n", c.Server.Timeout.Write))
	b.WriteString(fmt.Sprintf("  server.timeout.idle: %v\n", c.Server.Timeout.Idle))
	b.WriteString(fmt.Sprintf("  server.timeout.readHeader: %v\n", c.Server.Timeout.ReadHeader))

	b.WriteString("\n--- Storage Configuration ---\n")
	b.WriteString(fmt.Sprintf("  storage.backend: %s\n", c.Storage.Backend))
	b.WriteString(fmt.Sprintf("  storage.tableName: %s\n", c.Storage.TableName))
	b.WriteString(fmt.Sprintf("  storage.connectionString: %s\n", maskConnectionString(c.Storage.ConnectionString)))
	b.WriteString(fmt.Sprintf("  storage.databaseUrl: %s\n", maskURL(c.Storage.DatabaseURL)))
	b.WriteString(fmt.Sprintf("  storage.pageSize: %d\n", c.Storage.PageSize))
	b.WriteString(fmt.Sprintf("  storage.connectTimeout: %s\n", c.Storage.ConnectTimeout))

	b.WriteString("\n--- Observability & Logging ---\n")
	b.WriteString(fmt.Sprintf("  log.level: %s\n", c.Log.Level))
	b.WriteString(fmt.Sprintf("  otlp.enabled: %t\n", c.OTLP.Enabled))
	b.WriteString(fmt.Sprintf("  otlp.endpoint: %s\n", c.OTLP.Endpoint))
	b.WriteString(fmt.Sprintf("  otlp.serviceName: %s\n", c.OTLP.ServiceName))
	b.WriteString(fmt.Sprintf("  otlp.environment: %s\n", c.OTLP.Environment))
	b.WriteString(fmt.Sprintf("  metrics.durationMilliseconds: %t\n", c.Metrics.DurationMilliseconds))

	b.WriteString("\n--- Application Behavior ---\n")
	b.WriteString(fmt.Sprintf("  shutdown.timeout: %s\n", c.Shutdown.Timeout))

	return b.String()
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	// Mask the URL by replacing the username and password with "****"
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		return "****@" + parts[1]
	}
	return "****"
}

// maskConnectionString hides the value of every AccountKey and
// SharedAccessSignature setting
func maskConnectionString(cs string) string {
	if cs == "" {
		return "<not configured>"
	}
	parts := strings.Split(cs, ";")
	for i, part := range parts {
		key, _, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		switch strings.ToLower(key) {
		case "accountkey", "sharedaccesssignature":
			parts[i] = key + "=****"
		}
	}
	return strings.Join(parts, ";")
}
