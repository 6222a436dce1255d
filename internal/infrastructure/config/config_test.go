package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devConnectionString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=c2VjcmV0;TableEndpoint=http://127.0.0.1:10002/devstoreaccount1;"

// missing returns paths that do not exist so only defaults and env apply
func missing(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "config.yaml"), filepath.Join(dir, ".env")
}

func TestLoadFrom_Defaults(t *testing.T) {
	// given
	t.Setenv(azureWebJobsStorage, devConnectionString)
	configFile, envFile := missing(t)

	// when
	cfg, err := LoadFrom(configFile, envFile)

	// then
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Server.RoutePrefix)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 15*time.Second, cfg.Server.Timeout.Read)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout.ReadHeader)
	assert.Equal(t, BackendAzTable, cfg.Storage.Backend)
	assert.Equal(t, "products", cfg.Storage.TableName)
	assert.Equal(t, devConnectionString, cfg.Storage.ConnectionString)
	assert.Equal(t, 1000, cfg.Storage.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.OTLP.Enabled)
	assert.Equal(t, "products-func", cfg.OTLP.ServiceName)
	assert.Equal(t, 10*time.Second, cfg.Shutdown.Timeout)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	// given
	configFile, envFile := missing(t)
	t.Setenv("PRODUCTS_STORAGE_BACKEND", "memory")
	t.Setenv("PRODUCTS_STORAGE_PAGESIZE", "50")
	t.Setenv("PRODUCTS_SERVER_ROUTEPREFIX", "/v1")
	t.Setenv("PRODUCTS_SERVER_TIMEOUT_READHEADER", "2s")
	t.Setenv("PRODUCTS_LOG_LEVEL", "debug")
	t.Setenv("PRODUCTS_METRICS_DURATIONMILLISECONDS", "true")

	// when
	cfg, err := LoadFrom(configFile, envFile)

	// then
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 50, cfg.Storage.PageSize)
	assert.Equal(t, "/v1", cfg.Server.RoutePrefix)
	assert.Equal(t, 2*time.Second, cfg.Server.Timeout.ReadHeader)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Metrics.DurationMilliseconds)
}

func TestLoadFrom_FilesAndPriority(t *testing.T) {
	// given
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	envFile := filepath.Join(dir, ".env")
	yaml := "server:\n  port: 9000\n  host: 127.0.0.1\nstorage:\n  backend: memory\n  pageSize: 10\nlog:\n  level: warn\n"
	require.NoError(t, os.WriteFile(configFile, []byte(yaml), 0o600))
	require.NoError(t, os.WriteFile(envFile, []byte("PRODUCTS_STORAGE_PAGESIZE=20\nUNRELATED=1\n"), 0o600))
	t.Setenv("PRODUCTS_LOG_LEVEL", "error")

	// when
	cfg, err := LoadFrom(configFile, envFile)

	// then
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port, "yaml overrides defaults")
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 20, cfg.Storage.PageSize, ".env overrides yaml")
	assert.Equal(t, "error", cfg.Log.Level, "environment overrides yaml")
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
}

func TestLoadFrom_FunctionsHost(t *testing.T) {
	// given
	configFile, envFile := missing(t)
	t.Setenv(customHandlerPort, "7071")
	t.Setenv(azureWebJobsStorage, devConnectionString)
	t.Setenv("PRODUCTS_SERVER_PORT", "9000")

	// when
	cfg, err := LoadFrom(configFile, envFile)

	// then
	require.NoError(t, err)
	assert.Equal(t, 7071, cfg.Server.Port)
	assert.Equal(t, devConnectionString, cfg.Storage.ConnectionString)
}

func TestLoadFrom_ExplicitConnectionStringWins(t *testing.T) {
	configFile, envFile := missing(t)
	t.Setenv(azureWebJobsStorage, "UseDevelopmentStorage=true")
	t.Setenv("PRODUCTS_STORAGE_CONNECTIONSTRING", devConnectionString)

	cfg, err := LoadFrom(configFile, envFile)

	require.NoError(t, err)
	assert.Equal(t, devConnectionString, cfg.Storage.ConnectionString)
}

func TestLoadFrom_InvalidCustomHandlerPort(t *testing.T) {
	configFile, envFile := missing(t)
	t.Setenv("PRODUCTS_STORAGE_BACKEND", "memory")
	t.Setenv(customHandlerPort, "not-a-port")

	_, err := LoadFrom(configFile, envFile)

	require.Error(t, err)
	assert.Contains(t, err.Error(), customHandlerPort)
}

func TestLoadFrom_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "aztable without connection string", env: map[string]string{}},
		{name: "postgres without database url", env: map[string]string{"PRODUCTS_STORAGE_BACKEND": "postgres"}},
		{name: "postgres with other table", env: map[string]string{
			"PRODUCTS_STORAGE_BACKEND":     "postgres",
			"PRODUCTS_STORAGE_DATABASEURL": "postgres://u:p@localhost/db",
			"PRODUCTS_STORAGE_TABLENAME":   "items",
		}},
		{name: "unknown backend", env: map[string]string{"PRODUCTS_STORAGE_BACKEND": "mongo"}},
		{name: "bad table name", env: map[string]string{"PRODUCTS_STORAGE_BACKEND": "memory", "PRODUCTS_STORAGE_TABLENAME": "my-products"}},
		{name: "table name starting with digit", env: map[string]string{"PRODUCTS_STORAGE_BACKEND": "memory", "PRODUCTS_STORAGE_TABLENAME": "1products"}},
		{name: "page size too large", env: map[string]string{"PRODUCTS_STORAGE_BACKEND": "memory", "PRODUCTS_STORAGE_PAGESIZE": "5000"}},
		{name: "bad log level", env: map[string]string{"PRODUCTS_STORAGE_BACKEND": "memory", "PRODUCTS_LOG_LEVEL": "verbose"}},
		{name: "route prefix without slash", env: map[string]string{"PRODUCTS_STORAGE_BACKEND": "memory", "PRODUCTS_SERVER_ROUTEPREFIX": "api"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			t.Setenv(azureWebJobsStorage, "")
			configFile, envFile := missing(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			// when
			_, err := LoadFrom(configFile, envFile)

			// then
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
		})
	}
}

func TestConfig_Validate_OTLPEndpoint(t *testing.T) {
	// given
	t.Setenv(azureWebJobsStorage, devConnectionString)
	configFile, envFile := missing(t)
	cfg, err := LoadFrom(configFile, envFile)
	require.NoError(t, err)

	// when
	cfg.OTLP.Enabled = true
	cfg.OTLP.Endpoint = ""

	// then
	require.Error(t, cfg.Validate())
	cfg.OTLP.Enabled = false
	require.NoError(t, cfg.Validate())
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{
			ConnectionString: devConnectionString,
			DatabaseURL:      "postgres://user:secret@db:5432/products",
		},
	}

	s := cfg.String()

	assert.NotContains(t, s, "c2VjcmV0")
	assert.NotContains(t, s, "user:secret")
	assert.Contains(t, s, "AccountKey=****")
	assert.Contains(t, s, "AccountName=devstoreaccount1")
	assert.Contains(t, s, "****@db:5432/products")
}

func Test_maskConnectionString(t *testing.T) {
	assert.Equal(t, "<not configured>", maskConnectionString(""))
	assert.Equal(t, "UseDevelopmentStorage=true", maskConnectionString("UseDevelopmentStorage=true"))
	assert.Equal(t,
		"TableEndpoint=https://acct.table.core.windows.net/;SharedAccessSignature=****",
		maskConnectionString("TableEndpoint=https://acct.table.core.windows.net/;SharedAccessSignature=sv=2024&sig=abc"),
	)
}
